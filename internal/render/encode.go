package render

import (
	"encoding/json"

	"gopkg.in/yaml.v2"
)

// JSON converts v with ToPrimitive and encodes it as indented JSON.
func JSON(v any) ([]byte, error) {
	return json.MarshalIndent(ToPrimitive(v), "", "  ")
}

// YAML converts v with ToPrimitive and encodes it as YAML.
func YAML(v any) ([]byte, error) {
	return yaml.Marshal(ToPrimitive(v))
}
