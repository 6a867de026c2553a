// Package jsonx converts between typed values and the loosely typed JSON
// shapes that model output and agent results travel in.
package jsonx

import (
	"github.com/goccy/go-json"
)

// ToDynamicJSON converts a value into a generic JSON object.
func ToDynamicJSON(val any) (map[string]any, error) {
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	result := make(map[string]any)
	if err = json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Stringify returns strings unchanged and serializes everything else to JSON.
func Stringify(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	case []byte:
		return string(v), nil
	}
	b, err := json.Marshal(val)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode converts a generic value, usually a map produced by model output,
// into T.
func Decode[T any](val any) (T, error) {
	var out T
	b, err := json.Marshal(val)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}
