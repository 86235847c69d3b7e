package model

import (
	"fmt"
	"sort"

	"github.com/tigerroll/datagen/pkg/batch/support/util/serialization"
)

// InputRecord is one unit of input: the keyword arguments of a single call to
// the work function. It is treated as immutable once enqueued.
type InputRecord map[string]interface{}

// Hash returns the content hash used to match execution jobs on resume.
func (r InputRecord) Hash() (string, error) {
	return serialization.Hash(map[string]interface{}(r))
}

// Copy returns a shallow copy.
func (r InputRecord) Copy() InputRecord {
	c := make(InputRecord, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Keys returns the keys in sorted order.
func (r InputRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnmarshalJSON decodes a JSON object keeping integer values as int, so a
// record reloaded from storage hands the work function the same types and
// hashes to the same value as the record originally enqueued.
func (r *InputRecord) UnmarshalJSON(data []byte) error {
	v, err := serialization.DecodeJSON(data)
	if err != nil {
		return err
	}
	switch m := v.(type) {
	case nil:
		*r = nil
	case map[string]interface{}:
		*r = m
	default:
		return fmt.Errorf("input record must be a JSON object, got %T", v)
	}
	return nil
}
