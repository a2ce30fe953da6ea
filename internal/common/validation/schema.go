package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema that can be reused across validations.
type Schema struct {
	compiled *gojsonschema.Schema
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Compile parses a JSON schema document.
func Compile(schemaJSON string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompile is Compile for schemas embedded in the binary.
func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks any JSON-compatible Go value against the schema.
func (s *Schema) Validate(document interface{}) (*ValidationResult, error) {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return toResult(result), nil
}

func toResult(result *gojsonschema.Result) *ValidationResult {
	vr := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		field := strings.TrimPrefix(desc.Field(), gojsonschema.STRING_ROOT_SCHEMA_PROPERTY+".")
		// gojsonschema reports missing properties on the parent.
		if desc.Type() == "required" {
			if prop, ok := desc.Details()["property"].(string); ok && field != prop && !strings.HasSuffix(field, "."+prop) {
				field = joinField(field, prop)
			}
		}
		vr.Errors = append(vr.Errors, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    errorCode(desc.Type()),
		})
	}
	return vr
}

func joinField(parent, child string) string {
	if parent == "" || parent == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
		return child
	}
	return parent + "." + child
}

func errorCode(kind string) string {
	switch kind {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "invalid_type":
		return "INVALID_TYPE"
	case "enum":
		return "INVALID_ENUM_VALUE"
	case "number_gt", "number_gte":
		return "MINIMUM_VIOLATION"
	case "number_lt", "number_lte":
		return "MAXIMUM_VIOLATION"
	case "string_gte":
		return "MIN_LENGTH_VIOLATION"
	case "additional_property_not_allowed":
		return "EXTRA_FIELD"
	default:
		return strings.ToUpper(kind)
	}
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}
