package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLoggerAdapter implements fxevent.Logger on top of the package-level logger.
// Wiring noise goes to DEBUG; failures go to ERROR.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter creates a new FxLoggerAdapter.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

// LogEvent logs events from Fx.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		Debugf("fx: OnStart hook executing: %s", shortFuncName(e.FunctionName))
	case *fxevent.OnStartExecuted:
		logHookResult("OnStart", e.FunctionName, e.Err)
	case *fxevent.OnStopExecuting:
		Debugf("fx: OnStop hook executing: %s", shortFuncName(e.FunctionName))
	case *fxevent.OnStopExecuted:
		logHookResult("OnStop", e.FunctionName, e.Err)
	case *fxevent.Supplied:
		if e.Err != nil {
			Errorf("fx: supply failed: %v", e.Err)
		}
	case *fxevent.Provided:
		for _, rtype := range e.OutputTypeNames {
			Debugf("fx: provided %s", rtype)
		}
		if e.Err != nil {
			Errorf("fx: provide failed: %v", e.Err)
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("fx: invoke failed: %s, error: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Stopping:
		Debugf("fx: stopping on signal %s", e.Signal)
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("fx: stop failed: %v", e.Err)
		}
	case *fxevent.RollingBack:
		Errorf("fx: start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			Errorf("fx: rollback failed: %v", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("fx: start failed: %v", e.Err)
		} else {
			Debugf("fx: application started")
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			Errorf("fx: logger initialization failed: %v", e.Err)
		}
	}
}

func logHookResult(kind, funcName string, err error) {
	if err != nil {
		Errorf("fx: %s hook failed: %s, error: %v", kind, shortFuncName(funcName), err)
		return
	}
	Debugf("fx: %s hook executed: %s", kind, shortFuncName(funcName))
}

// shortFuncName strips the ".funcN" suffix Fx reports for closures.
func shortFuncName(funcName string) string {
	if idx := strings.LastIndex(funcName, ".func"); idx != -1 {
		return funcName[:idx]
	}
	return funcName
}
