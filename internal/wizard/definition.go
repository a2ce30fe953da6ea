package wizard

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidDefinition = errors.New("INVALID_DEFINITION")

// Condition restricts a rule to drafts where Field equals Equals.
type Condition struct {
	Field  string      `yaml:"field"`
	Equals interface{} `yaml:"equals"`
}

// Rule is one row of a step's validation table.
type Rule struct {
	Type       string     `yaml:"type"`
	Field      string     `yaml:"field"`
	ErrorField string     `yaml:"error_field,omitempty"`
	Message    string     `yaml:"message"`
	Values     []string   `yaml:"values,omitempty"`
	Min        *float64   `yaml:"min,omitempty"`
	When       *Condition `yaml:"when,omitempty"`
}

// Key is the draft field the rule's error is reported under.
func (r Rule) Key() string {
	if r.ErrorField != "" {
		return r.ErrorField
	}
	return r.Field
}

type Step struct {
	ID     int      `yaml:"id"`
	Label  string   `yaml:"label"`
	Fields []string `yaml:"fields,omitempty"`
	Rules  []Rule   `yaml:"rules,omitempty"`
}

// Definition describes one wizard: its ordered steps and initial draft.
type Definition struct {
	Kind    string `yaml:"kind"`
	Title   string `yaml:"title,omitempty"`
	Steps   []Step `yaml:"steps"`
	Initial Draft  `yaml:"initial,omitempty"`
}

// ParseDefinition decodes and checks a YAML wizard definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := def.Check(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinition reads a YAML wizard definition from path.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition %s: %w", path, err)
	}
	return ParseDefinition(data)
}

// MustParseDefinition is ParseDefinition for definitions embedded in the binary.
func MustParseDefinition(data []byte) *Definition {
	def, err := ParseDefinition(data)
	if err != nil {
		panic(err)
	}
	return def
}

// Check enforces contiguous step ids 1..N and well-formed rules.
func (d *Definition) Check() error {
	if d.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidDefinition)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrInvalidDefinition, d.Kind)
	}
	for i, step := range d.Steps {
		if step.ID != i+1 {
			return fmt.Errorf("%w: %s step at position %d has id %d, want %d", ErrInvalidDefinition, d.Kind, i+1, step.ID, i+1)
		}
		for _, rule := range step.Rules {
			if err := checkRule(rule); err != nil {
				return fmt.Errorf("%w: %s step %d: %v", ErrInvalidDefinition, d.Kind, step.ID, err)
			}
		}
	}
	if d.Initial == nil {
		d.Initial = Draft{}
	}
	return nil
}

func checkRule(rule Rule) error {
	if rule.Field == "" {
		return fmt.Errorf("rule %q has no field", rule.Type)
	}
	if _, ok := ruleChecks[rule.Type]; !ok {
		return fmt.Errorf("unknown rule type %q", rule.Type)
	}
	switch rule.Type {
	case RuleOneOf:
		if len(rule.Values) == 0 {
			return fmt.Errorf("one_of rule on %s has no values", rule.Field)
		}
	case RuleMinInt:
		if rule.Min == nil {
			return fmt.Errorf("min_int rule on %s has no min", rule.Field)
		}
	}
	if rule.When != nil && rule.When.Field == "" {
		return fmt.Errorf("condition of %s has no field", rule.Field)
	}
	return nil
}

// Len is N, the id of the final step.
func (d *Definition) Len() int {
	return len(d.Steps)
}

// Step returns the step with the given id.
func (d *Definition) Step(id int) (Step, bool) {
	if id < 1 || id > len(d.Steps) {
		return Step{}, false
	}
	return d.Steps[id-1], true
}

// InitialDraft returns a copy of the initial draft.
func (d *Definition) InitialDraft() Draft {
	return d.Initial.Clone()
}
