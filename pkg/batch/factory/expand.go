package factory

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

const module = "factory"

// ExpandInputs builds the queue of input records from the primary mappings in
// data and the keyword arguments in kwargs.
//
// A kwarg whose value is a slice or array (other than []byte) is parallel:
// its i-th element goes into the i-th record. Any other value is broadcast into
// every record. data, when non-empty, is parallel too. All parallel sources must
// have the same length, which is the number of records; without any parallel
// source exactly one record is produced.
//
// Each record starts as a copy of data[i], then takes the i-th element of every
// parallel kwarg, then every broadcast kwarg; later values override earlier keys.
func ExpandInputs(data []map[string]interface{}, kwargs map[string]interface{}) ([]model.InputRecord, error) {
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parallel := map[string]reflect.Value{}
	var broadcast []string
	lengths := map[string]int{}
	if len(data) > 0 {
		lengths["data"] = len(data)
	}
	for _, k := range keys {
		if v, ok := sequence(kwargs[k]); ok {
			parallel[k] = v
			lengths[k] = v.Len()
		} else {
			broadcast = append(broadcast, k)
		}
	}

	n := 1
	if len(lengths) > 0 {
		n = -1
		for _, l := range lengths {
			if n == -1 {
				n = l
			} else if l != n {
				return nil, exception.NewConfigurationError(module, "parallel inputs must have equal lengths, got %s", describeLengths(lengths))
			}
		}
	}

	records := make([]model.InputRecord, 0, n)
	for i := 0; i < n; i++ {
		rec := model.InputRecord{}
		if len(data) > 0 {
			for k, v := range data[i] {
				rec[k] = v
			}
		}
		for _, k := range keys {
			if v, ok := parallel[k]; ok {
				rec[k] = v.Index(i).Interface()
			}
		}
		for _, k := range broadcast {
			rec[k] = kwargs[k]
		}
		records = append(records, rec)
	}
	return records, nil
}

// RepeatToTarget cycles records until there are target of them, so that a
// target larger than the number of inputs can be reached. records is returned
// unchanged when it already holds target records or more.
func RepeatToTarget(records []model.InputRecord, target int) []model.InputRecord {
	if len(records) == 0 || len(records) >= target {
		return records
	}
	out := make([]model.InputRecord, 0, target)
	out = append(out, records...)
	for i := len(records); i < target; i++ {
		out = append(out, records[i%len(records)].Copy())
	}
	return out
}

// sequence reports whether v is expanded element-wise. Strings and byte slices are scalars.
func sequence(v interface{}) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return reflect.Value{}, false
		}
		return rv, true
	default:
		return reflect.Value{}, false
	}
}

func describeLengths(lengths map[string]int) string {
	names := make([]string, 0, len(lengths))
	for k := range lengths {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+"="+strconv.Itoa(lengths[k]))
	}
	return strings.Join(parts, ", ")
}

// ValidateParameters checks every record against the parameters declared by
// the work function: required parameters must be present and no undeclared
// key is allowed. A nil declaration accepts any record.
func ValidateParameters(records []model.InputRecord, params []port.Parameter) error {
	if params == nil {
		return nil
	}
	declared := make(map[string]port.Parameter, len(params))
	for _, p := range params {
		declared[p.Name] = p
	}
	for i, rec := range records {
		for _, p := range params {
			if _, ok := rec[p.Name]; !ok && !p.HasDefault {
				return exception.NewConfigurationError(module, "input record %d is missing required parameter '%s'", i, p.Name)
			}
		}
		for _, k := range rec.Keys() {
			if _, ok := declared[k]; !ok {
				return exception.NewConfigurationError(module, "input record %d has unexpected parameter '%s'", i, k)
			}
		}
	}
	return nil
}
