// Package exception provides the error taxonomy of the datagen engine.
// Errors are wrapped in BatchError and classified with sentinel values so that
// callers can branch with errors.Is: configuration errors abort a run before any
// scheduling, task errors are absorbed and retried, storage errors abort a run,
// and an empty result is reported as ErrNoRecordsGenerated.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Names under which the sentinel errors are registered.
const (
	ConfigurationError      = "ConfigurationError"
	TaskFailedError         = "TaskFailedError"
	TaskTimeoutError        = "TaskTimeoutError"
	StorageError            = "StorageError"
	NoRecordsGeneratedError = "NoRecordsGeneratedError"
	AttemptsExhaustedError  = "AttemptsExhaustedError"
	NotFoundError           = "NotFoundError"
)

var (
	// ErrConfiguration marks invalid job configuration or input shape.
	ErrConfiguration = errors.New(ConfigurationError)
	// ErrTaskFailed marks an error returned (or panicked) by the work function.
	ErrTaskFailed = errors.New(TaskFailedError)
	// ErrTaskTimeout marks a work function that exceeded its timeout.
	ErrTaskTimeout = errors.New(TaskTimeoutError)
	// ErrStorage marks a failure of the storage backend.
	ErrStorage = errors.New(StorageError)
	// ErrNoRecordsGenerated is returned when a run finishes with zero completed records.
	ErrNoRecordsGenerated = errors.New(NoRecordsGeneratedError)
	// ErrAttemptsExhausted marks an input that used up its attempt budget.
	ErrAttemptsExhausted = errors.New(AttemptsExhaustedError)
	// ErrNotFound marks a storage lookup that found nothing.
	ErrNotFound = errors.New(NotFoundError)
)

// errorRegistry maps error names used in configuration to sentinel errors.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

// RegisterErrorType registers an error prototype under a name.
// Registered names can be referenced from configuration (for example the retry
// policy's non_retryable list) and are matched by IsErrorOfType.
//
// It panics if name is empty or prototype is nil.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}

	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type name is registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// BatchError is the error type produced by the engine.
// It records the module where the error occurred, a message, the wrapped
// original error and whether the failed operation may be attempted again.
type BatchError struct {
	// Module indicates where the error occurred (e.g., "task", "job", "factory", "storage").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRetryable indicates whether the failed operation may be attempted again.
	isRetryable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewBatchError creates a new BatchError instance.
func NewBatchError(module, message string, originalErr error, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf creates a new BatchError using a format string.
// Optional trailing arguments are consumed from the end in the order
// [isRetryable bool], [originalErr error]; the rest feed fmt.Sprintf.
//
// Examples:
//
//	NewBatchErrorf("storage", "failed to save record %s", id, err)
//	NewBatchErrorf("task", "work function failed", true, err)
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	isRetryable := false
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isRetryable = b
			args = args[:len(args)-1]
		}
	}

	return NewBatchError(module, fmt.Sprintf(format, args...), originalErr, isRetryable)
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Is and errors.As.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// join attaches a sentinel to an optional cause.
func join(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return errors.Join(sentinel, cause)
}

// NewConfigurationError returns a non-retryable error wrapping ErrConfiguration.
func NewConfigurationError(module, format string, a ...interface{}) *BatchError {
	return NewBatchError(module, fmt.Sprintf(format, a...), ErrConfiguration, false)
}

// NewTaskError wraps an error returned by the work function.
func NewTaskError(module, message string, cause error) *BatchError {
	return NewBatchError(module, message, join(ErrTaskFailed, cause), true)
}

// NewTaskTimeoutError reports a work function that ran longer than timeout.
func NewTaskTimeoutError(module string, timeout time.Duration) *BatchError {
	return NewBatchError(module, fmt.Sprintf("task exceeded timeout of %s", timeout),
		errors.Join(ErrTaskTimeout, context.DeadlineExceeded), true)
}

// NewStorageError wraps a failure of the storage backend.
func NewStorageError(module, message string, cause error) *BatchError {
	return NewBatchError(module, message, join(ErrStorage, cause), false)
}

// NewNotFoundError reports a missing storage entity. It also matches ErrStorage.
func NewNotFoundError(module, message string) *BatchError {
	return NewBatchError(module, message, errors.Join(ErrStorage, ErrNotFound), false)
}

// NewNoRecordsGeneratedError reports a run that completed zero records.
func NewNoRecordsGeneratedError(module, masterJobID string, attempted int) *BatchError {
	return NewBatchError(module,
		fmt.Sprintf("no records generated for master job %s after %d attempts", masterJobID, attempted),
		ErrNoRecordsGenerated, false)
}

// IsBatchError determines if the given error is a BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsTaskError reports whether err came from a failing or timed-out task.
func IsTaskError(err error) bool {
	return errors.Is(err, ErrTaskFailed) || errors.Is(err, ErrTaskTimeout)
}

// IsStorageError reports whether err came from the storage backend.
func IsStorageError(err error) bool { return errors.Is(err, ErrStorage) }

// IsNotFound reports whether err is a storage lookup miss.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTemporary determines if an error may succeed on a later attempt.
// A BatchError's retryable flag takes precedence over message inspection.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF")
}

// IsErrorOfType checks if an error matches a registered name, a substring of
// any message in its chain, or the Go type name of any error in its chain.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()

	if ok && errors.Is(err, targetError) {
		return true
	}

	currentErr := err
	for currentErr != nil {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}
		errType := reflect.TypeOf(currentErr)
		if errType != nil {
			if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
				return true
			}
		}
		currentErr = errors.Unwrap(currentErr)
	}

	return false
}

// ErrorTypeName returns the name of the first engine sentinel err matches, or
// "Error" when it matches none.
func ErrorTypeName(err error) string {
	for _, s := range []error{ErrTaskTimeout, ErrTaskFailed, ErrConfiguration, ErrNoRecordsGenerated, ErrNotFound, ErrStorage, ErrAttemptsExhausted} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "Error"
}

// ExtractErrorMessage returns the Message of a BatchError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

func init() {
	RegisterErrorType(ConfigurationError, ErrConfiguration)
	RegisterErrorType(TaskFailedError, ErrTaskFailed)
	RegisterErrorType(TaskTimeoutError, ErrTaskTimeout)
	RegisterErrorType(StorageError, ErrStorage)
	RegisterErrorType(NoRecordsGeneratedError, ErrNoRecordsGenerated)
	RegisterErrorType(AttemptsExhaustedError, ErrAttemptsExhausted)
	RegisterErrorType(NotFoundError, ErrNotFound)

	RegisterErrorType("io.EOF", errors.New("io.EOF"))
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}
