// Package serialization provides the JSON encoding used for input records,
// request configs and record payloads, including the canonical form that
// input hashes are computed from.
package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

const module = "serialization"

// MaskValue replaces the value of masked parameter keys in logs.
const MaskValue = "********"

// CanonicalJSON encodes v as JSON with sorted object keys at every depth.
// The value is first round-tripped through a generic decode so that a record
// built in memory and the same record reloaded from storage encode to the
// same bytes (struct field order and numeric types no longer matter).
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, exception.NewBatchError(module, "failed to marshal value to JSON", err, false)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, exception.NewBatchError(module, "failed to normalize JSON", err, false)
	}
	// encoding/json writes map keys in sorted order.
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, exception.NewBatchError(module, "failed to marshal canonical JSON", err, false)
	}
	return out, nil
}

// Hash returns the hex sha256 of the canonical JSON of v.
func Hash(v interface{}) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// MarshalPayload serializes one output item of a work function.
func MarshalPayload(payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("Failed to serialize record payload of type %T: %v", payload, err)
		return nil, exception.NewBatchError(module, "failed to serialize record payload", err, false)
	}
	return data, nil
}

// UnmarshalPayload decodes a payload written by MarshalPayload into a generic value.
// Numbers are decoded as by DecodeJSON.
func UnmarshalPayload(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	payload, err := DecodeJSON(data)
	if err != nil {
		return nil, exception.NewBatchError(module, "failed to deserialize record payload", err, false)
	}
	return payload, nil
}

// DecodeJSON decodes data into a generic value without losing numeric
// precision. Integer literals become int (int64 or uint64 when they do not fit
// an int), all other numbers become float64.
func DecodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return NormalizeNumbers(v), nil
}

// NormalizeNumbers replaces every json.Number inside v, including inside
// nested maps and slices, with its int or float64 value. Maps and slices are
// modified in place.
func NormalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		return normalizeNumber(t)
	case map[string]interface{}:
		for k, e := range t {
			t[k] = NormalizeNumbers(e)
		}
		return t
	case []interface{}:
		for i, e := range t {
			t[i] = NormalizeNumbers(e)
		}
		return t
	}
	return v
}

func normalizeNumber(n json.Number) interface{} {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			if i >= math.MinInt && i <= math.MaxInt {
				return int(i)
			}
			return i
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u
		}
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return s
}

// MaskParameters returns a copy of params with the values of maskedKeys replaced.
func MaskParameters(params map[string]interface{}, maskedKeys []string) map[string]interface{} {
	masked := make(map[string]interface{}, len(params))
	for k, v := range params {
		masked[k] = v
	}
	for _, key := range maskedKeys {
		if _, ok := masked[key]; ok {
			masked[key] = MaskValue
		}
	}
	return masked
}
