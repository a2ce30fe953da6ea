package submission

import (
	"fmt"
	"strings"

	"geoincra-portal/internal/wizard"
)

// Kind is the wire type a draft value is coerced to.
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindInt    Kind = "int"
	KindBool   Kind = "bool"
	// KindRaw forwards the draft value untouched.
	KindRaw Kind = "raw"
)

// Condition holds when the draft field equals the given value.
type Condition struct {
	Field  string
	Equals string
}

func (c *Condition) holds(d wizard.Draft) bool {
	s, _ := wizard.AsString(d[c.Field])
	return s == c.Equals
}

// Field maps one draft field onto the wire.
type Field struct {
	Source string
	// Target defaults to Source.
	Target string
	Kind   Kind
	// Default is sent when the draft value is absent or blank.
	Default interface{}
	// NullUnless sends null whenever the condition does not hold.
	NullUnless *Condition
}

func (f Field) target() string {
	if f.Target != "" {
		return f.Target
	}
	return f.Source
}

// FieldMap serializes a draft into a request payload.
type FieldMap struct {
	Fields []Field
	// Passthrough copies every draft field not named by Fields as-is.
	Passthrough bool
}

// Serialize builds the payload. A value that cannot be coerced to its
// declared kind is an error.
func (m FieldMap) Serialize(d wizard.Draft) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(d))

	if m.Passthrough {
		mapped := make(map[string]bool, len(m.Fields))
		for _, f := range m.Fields {
			mapped[f.Source] = true
		}
		for k, v := range d {
			if !mapped[k] {
				out[k] = v
			}
		}
	}

	for _, f := range m.Fields {
		if f.NullUnless != nil && !f.NullUnless.holds(d) {
			out[f.target()] = nil
			continue
		}
		v, err := coerce(f, d[f.Source])
		if err != nil {
			return nil, err
		}
		out[f.target()] = v
	}
	return out, nil
}

func coerce(f Field, v interface{}) (interface{}, error) {
	if wizard.IsBlank(v) {
		if f.Default != nil {
			return f.Default, nil
		}
		if f.Kind == KindRaw || f.Kind == KindString {
			if v == nil {
				return nil, nil
			}
			return strings.TrimSpace(v.(string)), nil
		}
		return nil, nil
	}

	switch f.Kind {
	case KindString:
		s, ok := wizard.AsString(v)
		if !ok {
			return nil, fmt.Errorf("%s: expected text", f.Source)
		}
		return strings.TrimSpace(s), nil
	case KindNumber:
		n, ok := wizard.AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("%s: expected a number", f.Source)
		}
		return n, nil
	case KindInt:
		n, ok := wizard.AsInt(v)
		if !ok {
			return nil, fmt.Errorf("%s: expected an integer", f.Source)
		}
		return n, nil
	case KindBool:
		b, ok := wizard.AsBool(v)
		if !ok {
			return nil, fmt.Errorf("%s: expected true or false", f.Source)
		}
		return b, nil
	default:
		return v, nil
	}
}
