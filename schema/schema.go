// Package schema declares the shapes that structured LLM output must take
// and validates candidate JSON text against them.
//
// Schemas are plain values built once at startup from Field constructors.
// Nothing here inspects Go types at runtime: the description embedded in a
// prompt and the rules used to validate the reply come from the same
// declaration.
//
//	fact := schema.New("ExtractedFact", "A single fact extracted from a source.",
//	    schema.StringField("fact", "The extracted piece of information"),
//	    schema.StringField("source", "URL or source name"),
//	    schema.NumberField("confidence", "Confidence score 0-1").Unit(),
//	)
package schema

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// Kind is the semantic type of a field. The values double as JSON Schema
// type names in descriptions.
type Kind string

const (
	String Kind = "string"
	Number Kind = "number"
	Bool   Kind = "boolean"
	List   Kind = "array"
	Object Kind = "object"
)

// Field describes one property of a schema.
type Field struct {
	Name        string
	Kind        Kind
	Description string
	Required    bool
	Min         *float64
	Max         *float64
	// Items is the element type of a List field.
	Items *Field
	// Object is the nested shape of an Object field.
	Object *Schema
}

// StringField declares a required string.
func StringField(name, description string) Field {
	return Field{Name: name, Kind: String, Description: description, Required: true}
}

// NumberField declares a required number.
func NumberField(name, description string) Field {
	return Field{Name: name, Kind: Number, Description: description, Required: true}
}

// BoolField declares a required boolean.
func BoolField(name, description string) Field {
	return Field{Name: name, Kind: Bool, Description: description, Required: true}
}

// ListField declares a required list whose elements are described by items.
// The name of items is ignored.
func ListField(name, description string, items Field) Field {
	items.Name = ""
	items.Required = true
	return Field{Name: name, Kind: List, Description: description, Required: true, Items: &items}
}

// ObjectField declares a required nested object.
func ObjectField(name, description string, s *Schema) Field {
	return Field{Name: name, Kind: Object, Description: description, Required: true, Object: s}
}

// Optional returns a copy of f that may be absent or null.
func (f Field) Optional() Field {
	f.Required = false
	return f
}

// Bounded returns a copy of f restricted to [min, max] inclusive.
func (f Field) Bounded(min, max float64) Field {
	f.Min = &min
	f.Max = &max
	return f
}

// Unit is Bounded(0, 1), the range used for confidence scores.
func (f Field) Unit() Field {
	return f.Bounded(0, 1)
}

// Schema is a named structure of fields. Treat it as immutable once built.
type Schema struct {
	Name        string
	Description string
	Fields      []Field

	descOnce sync.Once
	desc     []byte
}

// New builds a schema.
func New(name, description string, fields ...Field) *Schema {
	return &Schema{Name: name, Description: description, Fields: fields}
}

// Describe renders the schema as an indented JSON Schema document suitable
// for embedding in a prompt. The rendering is computed once and the same
// bytes are returned on every call.
func (s *Schema) Describe() []byte {
	s.descOnce.Do(func() {
		b, err := json.MarshalIndent(s.description(), "", "  ")
		if err != nil {
			// description contains only strings, slices, maps and floats.
			panic(errors.Wrapf(err, "describe schema %s", s.Name))
		}
		s.desc = b
	})
	out := make([]byte, len(s.desc))
	copy(out, s.desc)
	return out
}

// Describe is shorthand for s.Describe().
func Describe(s *Schema) []byte {
	return s.Describe()
}

// description is the serialisable form. encoding/json writes map keys in
// sorted order, so the output is stable for a given schema.
type description struct {
	Type        Kind                    `json:"type"`
	Title       string                  `json:"title,omitempty"`
	Description string                  `json:"description,omitempty"`
	Properties  map[string]*description `json:"properties,omitempty"`
	Required    []string                `json:"required,omitempty"`
	Items       *description            `json:"items,omitempty"`
	Minimum     *float64                `json:"minimum,omitempty"`
	Maximum     *float64                `json:"maximum,omitempty"`
}

func (s *Schema) description() *description {
	d := &description{
		Type:        Object,
		Title:       s.Name,
		Description: s.Description,
		Properties:  make(map[string]*description, len(s.Fields)),
	}
	for _, f := range s.Fields {
		d.Properties[f.Name] = f.description()
		if f.Required {
			d.Required = append(d.Required, f.Name)
		}
	}
	return d
}

func (f Field) description() *description {
	var d *description
	switch f.Kind {
	case Object:
		d = f.Object.description()
	case List:
		d = &description{Type: List, Items: f.Items.description()}
	default:
		d = &description{Type: f.Kind, Minimum: f.Min, Maximum: f.Max}
	}
	if f.Description != "" {
		d.Description = f.Description
	}
	return d
}

// check reports declaration mistakes: unnamed or duplicate fields, lists
// without an element type, objects without a shape, inverted bounds.
func (s *Schema) check() error {
	if s == nil {
		return errors.New("nil schema")
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return errors.Errorf("schema %s: field without a name", s.Name)
		}
		if seen[f.Name] {
			return errors.Errorf("schema %s: duplicate field %q", s.Name, f.Name)
		}
		seen[f.Name] = true
		if err := f.check(); err != nil {
			return errors.Wrapf(err, "schema %s: field %s", s.Name, f.Name)
		}
	}
	return nil
}

func (f Field) check() error {
	switch f.Kind {
	case String, Bool:
	case Number:
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return errors.Errorf("minimum %v exceeds maximum %v", *f.Min, *f.Max)
		}
	case List:
		if f.Items == nil {
			return errors.New("list without item type")
		}
		return f.Items.check()
	case Object:
		if f.Object == nil {
			return errors.New("object without schema")
		}
		return f.Object.check()
	default:
		return errors.Errorf("unknown kind %q", f.Kind)
	}
	return nil
}
