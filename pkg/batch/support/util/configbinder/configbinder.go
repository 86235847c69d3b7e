// Package configbinder decodes loosely typed configuration maps into structs.
package configbinder

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds a map of properties to a target struct using mapstructure.
// It uses the "yaml" tag for binding and allows weakly typed input, so values
// coming from environment variables ("5432") decode into numeric fields.
func BindProperties(properties map[string]interface{}, target interface{}) error {
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(properties); err != nil {
		return fmt.Errorf("failed to decode properties: %w", err)
	}

	return nil
}

// BindNamed looks up name in a map of named configurations (such as the
// `database` or `blob` sections) and binds the entry to target.
func BindNamed(configs map[string]interface{}, name string, target interface{}) error {
	raw, ok := configs[name]
	if !ok {
		return fmt.Errorf("no configuration named '%s'", name)
	}
	props, ok := raw.(map[string]interface{})
	if !ok {
		return fmt.Errorf("configuration '%s' is not a mapping (got %T)", name, raw)
	}
	return BindProperties(props, target)
}
