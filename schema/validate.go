package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ErrMismatch is matched by every *MismatchError.
var ErrMismatch = errors.New("schema mismatch")

// MismatchError reports why candidate text does not conform to a schema.
// Path is a JSON path such as $.key_facts[2].confidence.
type MismatchError struct {
	Schema string
	Path   string
	Reason string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("schema %s: %s: %s", e.Schema, e.Path, e.Reason)
}

// Is makes errors.Is(err, ErrMismatch) hold.
func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}

func mismatch(s *Schema, path, format string, args ...any) *MismatchError {
	return &MismatchError{Schema: s.Name, Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Validate parses text as a single JSON object and checks it against s.
// Required fields must be present and non-null, every value must have the
// declared kind, and bounded numbers must lie within their bounds
// inclusive. Keys the schema does not declare are ignored. The parsed
// object is returned on success; any failure is a *MismatchError.
func Validate(s *Schema, text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, mismatch(s, "$", "invalid JSON: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, mismatch(s, "$", "unexpected data after the JSON object")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, mismatch(s, "$", "expected object, got %s", kindOf(v))
	}
	if err := validateObject(s, s, obj, "$"); err != nil {
		return nil, err
	}
	return obj, nil
}

// Decode validates text against s and unmarshals it into a T.
func Decode[T any](s *Schema, text string) (T, error) {
	var out T
	if _, err := Validate(s, text); err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, mismatch(s, "$", "decode into %T: %v", out, err)
	}
	return out, nil
}

// root is the top-level schema, used to label errors from nested objects.
func validateObject(root, s *Schema, obj map[string]any, path string) error {
	for _, f := range s.Fields {
		fieldPath := path + "." + f.Name
		v, present := obj[f.Name]
		if !present || v == nil {
			if f.Required {
				return mismatch(root, fieldPath, "required field is missing")
			}
			continue
		}
		if err := validateValue(root, f, v, fieldPath); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(root *Schema, f Field, v any, path string) error {
	switch f.Kind {
	case String:
		if _, ok := v.(string); !ok {
			return mismatch(root, path, "expected string, got %s", kindOf(v))
		}
	case Bool:
		if _, ok := v.(bool); !ok {
			return mismatch(root, path, "expected boolean, got %s", kindOf(v))
		}
	case Number:
		n, ok := v.(float64)
		if !ok {
			return mismatch(root, path, "expected number, got %s", kindOf(v))
		}
		if f.Min != nil && n < *f.Min {
			return mismatch(root, path, "%v is below the minimum %v", n, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return mismatch(root, path, "%v is above the maximum %v", n, *f.Max)
		}
	case List:
		items, ok := v.([]any)
		if !ok {
			return mismatch(root, path, "expected array, got %s", kindOf(v))
		}
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if item == nil {
				return mismatch(root, itemPath, "null list element")
			}
			if err := validateValue(root, *f.Items, item, itemPath); err != nil {
				return err
			}
		}
	case Object:
		obj, ok := v.(map[string]any)
		if !ok {
			return mismatch(root, path, "expected object, got %s", kindOf(v))
		}
		return validateObject(root, f.Object, obj, path)
	default:
		return mismatch(root, path, "unknown kind %q", f.Kind)
	}
	return nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
