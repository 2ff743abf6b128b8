package spec

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// Vendor extensions honored by the generator.
const (
	ExtOperationName = "x-operation-name"
	ExtEnumNames     = "x-enumNames"
)

// operationName reads x-operation-name. It returns "" when the extension is absent.
func operationName(ext map[string]any) (string, error) {
	raw, ok := ext[ExtOperationName]
	if !ok {
		return "", nil
	}
	v, err := decodeExtension(raw)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Newf("%s must be a string, got %T", ExtOperationName, v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.Newf("%s must not be empty", ExtOperationName)
	}
	return s, nil
}

// enumNames reads x-enumNames and checks it pairs positionally with count literals.
// It returns nil when the extension is absent.
func enumNames(ext map[string]any, count int) ([]string, error) {
	raw, ok := ext[ExtEnumNames]
	if !ok {
		return nil, nil
	}
	v, err := decodeExtension(raw)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, errors.Newf("%s must be an array of strings, got %T", ExtEnumNames, v)
	}
	if len(list) != count {
		return nil, errors.Newf("%s has %d names but the enum declares %d values", ExtEnumNames, len(list), count)
	}
	names := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, errors.Newf("%s[%d] must be a non-empty string", ExtEnumNames, i)
		}
		names[i] = strings.TrimSpace(s)
	}
	return names, nil
}

// decodeExtension normalizes extension values that arrive as raw JSON.
func decodeExtension(raw any) (any, error) {
	switch v := raw.(type) {
	case json.RawMessage:
		var out any
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, err
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	default:
		return raw, nil
	}
}
