package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/factory"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

func TestExpandInputs_BroadcastsScalars(t *testing.T) {
	data := []map[string]interface{}{{"city": "A"}, {"city": "B"}}

	records, err := factory.ExpandInputs(data, map[string]interface{}{"n": 5})
	require.NoError(t, err)

	assert.Equal(t, []model.InputRecord{
		{"city": "A", "n": 5},
		{"city": "B", "n": 5},
	}, records)
}

func TestExpandInputs_ParallelOverridesPrimary(t *testing.T) {
	data := []map[string]interface{}{{"city": "A"}, {"city": "B"}}

	records, err := factory.ExpandInputs(data, map[string]interface{}{"city": []string{"X", "Y"}})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "X", records[0]["city"])
	assert.Equal(t, "Y", records[1]["city"])
}

func TestExpandInputs_ParallelKwargsWithoutData(t *testing.T) {
	records, err := factory.ExpandInputs(nil, map[string]interface{}{
		"city": []string{"X", "Y", "Z"},
		"rank": [3]int{1, 2, 3},
		"lang": "en",
	})
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, model.InputRecord{"city": "Z", "rank": 3, "lang": "en"}, records[2])
}

func TestExpandInputs_StringsAndBytesAreScalars(t *testing.T) {
	records, err := factory.ExpandInputs(nil, map[string]interface{}{
		"name": "abc",
		"raw":  []byte("xyz"),
		"n":    5,
	})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, []byte("xyz"), records[0]["raw"])
	assert.Equal(t, "abc", records[0]["name"])
}

func TestExpandInputs_NoInputGivesOneEmptyRecord(t *testing.T) {
	records, err := factory.ExpandInputs(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []model.InputRecord{{}}, records)
}

func TestExpandInputs_MismatchedLengths(t *testing.T) {
	data := []map[string]interface{}{{"city": "A"}, {"city": "B"}}

	_, err := factory.ExpandInputs(data, map[string]interface{}{"topic": []string{"x", "y", "z"}})
	require.Error(t, err)
	assert.True(t, exception.IsConfiguration(err))
	assert.Contains(t, err.Error(), "data=2")
	assert.Contains(t, err.Error(), "topic=3")
}

func TestExpandInputs_DoesNotAliasPrimaryMappings(t *testing.T) {
	data := []map[string]interface{}{{"city": "A"}}

	records, err := factory.ExpandInputs(data, map[string]interface{}{"n": 1})
	require.NoError(t, err)
	records[0]["city"] = "changed"
	assert.Equal(t, "A", data[0]["city"])
	_, ok := data[0]["n"]
	assert.False(t, ok)
}

func TestRepeatToTarget(t *testing.T) {
	records := []model.InputRecord{{"city": "A"}, {"city": "B"}}

	out := factory.RepeatToTarget(records, 5)
	require.Len(t, out, 5)
	for i, want := range []string{"A", "B", "A", "B", "A"} {
		assert.Equal(t, want, out[i]["city"])
	}
	out[2]["city"] = "changed"
	assert.Equal(t, "A", records[0]["city"])

	assert.Len(t, factory.RepeatToTarget(records, 1), 2)
	assert.Len(t, factory.RepeatToTarget(records, 2), 2)
	assert.Empty(t, factory.RepeatToTarget(nil, 3))
}

func TestValidateParameters(t *testing.T) {
	params := []port.Parameter{port.Required("city"), port.Optional("n")}

	t.Run("valid", func(t *testing.T) {
		err := factory.ValidateParameters([]model.InputRecord{{"city": "A"}, {"city": "B", "n": 2}}, params)
		assert.NoError(t, err)
	})
	t.Run("missing required", func(t *testing.T) {
		err := factory.ValidateParameters([]model.InputRecord{{"city": "A"}, {"n": 2}}, params)
		require.Error(t, err)
		assert.True(t, exception.IsConfiguration(err))
		assert.Contains(t, err.Error(), "city")
	})
	t.Run("unexpected key", func(t *testing.T) {
		err := factory.ValidateParameters([]model.InputRecord{{"city": "A", "zip": 1}}, params)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "zip")
	})
	t.Run("undeclared accepts anything", func(t *testing.T) {
		assert.NoError(t, factory.ValidateParameters([]model.InputRecord{{"anything": 1}}, nil))
	})
}
