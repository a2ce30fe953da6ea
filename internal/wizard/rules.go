package wizard

import (
	"fmt"
	"strings"
)

const (
	RuleRequired       = "required"
	RuleReference      = "reference"
	RulePositiveNumber = "positive_number"
	RuleOneOf          = "one_of"
	RuleMinInt         = "min_int"
)

// ruleCheck reports whether value satisfies rule.
type ruleCheck func(rule Rule, value interface{}) bool

var ruleChecks = map[string]ruleCheck{
	// non-empty after trimming
	RuleRequired: func(rule Rule, value interface{}) bool {
		return !IsBlank(value)
	},
	// a resolved identifier; free text in the companion label field does not count
	RuleReference: func(rule Rule, value interface{}) bool {
		if IsBlank(value) {
			return false
		}
		if _, ok := value.(bool); ok {
			return false
		}
		return true
	},
	RulePositiveNumber: func(rule Rule, value interface{}) bool {
		f, ok := AsFloat(value)
		return ok && f > 0
	},
	RuleOneOf: func(rule Rule, value interface{}) bool {
		s, ok := value.(string)
		if !ok {
			return false
		}
		s = strings.TrimSpace(s)
		for _, allowed := range rule.Values {
			if s == allowed {
				return true
			}
		}
		return false
	},
	RuleMinInt: func(rule Rule, value interface{}) bool {
		i, ok := AsInt(value)
		return ok && float64(i) >= *rule.Min
	},
}

// applies evaluates the rule's condition against draft.
func (r Rule) applies(draft Draft) bool {
	if r.When == nil {
		return true
	}
	got, ok := AsString(draft[r.When.Field])
	if !ok {
		return false
	}
	want, ok := AsString(r.When.Equals)
	return ok && strings.TrimSpace(got) == want
}

func (r Rule) message() string {
	if r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf("%s is invalid", r.Key())
}
