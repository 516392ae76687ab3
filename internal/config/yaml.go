package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// coerceToJSONBytes lets one strict JSON decoder (DisallowUnknownFields)
// cover both config formats: files with a .yaml/.yml extension are decoded
// and re-marshaled as JSON, anything else is passed through as JSON.
//
// yaml/v3 decodes string-keyed mappings into map[string]any, which is all
// this config schema uses; a mapping with non-string keys fails the JSON
// re-marshal and is rejected as malformed.
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, "json", nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}
	j, err := json.Marshal(v)
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml to json: %w", err)
	}
	return j, "yaml", nil
}
