package serialization_test

import (
	"encoding/json"
	"testing"

	"github.com/tigerroll/datagen/pkg/batch/support/util/serialization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSON_SortsKeysRecursively(t *testing.T) {
	v := map[string]interface{}{
		"b": 1,
		"a": map[string]interface{}{"z": true, "y": "s"},
	}
	out, err := serialization.CanonicalJSON(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":"s","z":true},"b":1}`, string(out))
}

func TestHash_StableAcrossReload(t *testing.T) {
	type city struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	original := map[string]interface{}{"city": city{Name: "Paris", Count: 3}, "n": 5}

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	var reloaded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &reloaded))

	h1, err := serialization.Hash(original)
	require.NoError(t, err)
	h2, err := serialization.Hash(reloaded)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	h3, err := serialization.Hash(map[string]interface{}{"n": 6})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestHash_UnsupportedValue(t *testing.T) {
	_, err := serialization.Hash(map[string]interface{}{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestPayloadRoundTrip(t *testing.T) {
	data, err := serialization.MarshalPayload(map[string]interface{}{"text": "hello"})
	require.NoError(t, err)
	payload, err := serialization.UnmarshalPayload(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"text": "hello"}, payload)

	empty, err := serialization.UnmarshalPayload(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestDecodeJSON_KeepsIntegers(t *testing.T) {
	v, err := serialization.DecodeJSON([]byte(`{"n":3,"big":9007199254740993,"f":1.5,"e":1e3,"nested":{"xs":[1,2.5,{"k":7}]},"s":"x"}`))
	require.NoError(t, err)

	m := v.(map[string]interface{})
	assert.Equal(t, 3, m["n"])
	assert.Equal(t, 9007199254740993, m["big"])
	assert.Equal(t, 1.5, m["f"])
	assert.Equal(t, 1000.0, m["e"])
	assert.Equal(t, "x", m["s"])
	xs := m["nested"].(map[string]interface{})["xs"].([]interface{})
	assert.Equal(t, 1, xs[0])
	assert.Equal(t, 2.5, xs[1])
	assert.Equal(t, map[string]interface{}{"k": 7}, xs[2])

	huge, err := serialization.DecodeJSON([]byte(`18446744073709551615`))
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), huge)

	_, err = serialization.DecodeJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestHash_StableForLargeIntegersAfterDecode(t *testing.T) {
	original := map[string]interface{}{"id": 9007199254740993, "w": 0.25}
	raw, err := json.Marshal(original)
	require.NoError(t, err)
	reloaded, err := serialization.DecodeJSON(raw)
	require.NoError(t, err)

	h1, err := serialization.Hash(original)
	require.NoError(t, err)
	h2, err := serialization.Hash(reloaded)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, original, reloaded)
}

func TestUnmarshalPayload_Numbers(t *testing.T) {
	data, err := serialization.MarshalPayload(map[string]interface{}{"count": 4, "score": 0.5})
	require.NoError(t, err)
	payload, err := serialization.UnmarshalPayload(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"count": 4, "score": 0.5}, payload)
}

func TestMaskParameters(t *testing.T) {
	params := map[string]interface{}{"api_key": "secret", "city": "Paris"}
	masked := serialization.MaskParameters(params, []string{"api_key", "missing"})

	assert.Equal(t, serialization.MaskValue, masked["api_key"])
	assert.Equal(t, "Paris", masked["city"])
	assert.NotContains(t, masked, "missing")
	assert.Equal(t, "secret", params["api_key"])
}
