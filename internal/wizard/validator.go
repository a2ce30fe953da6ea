package wizard

// Validator maps (step, draft) to field errors without side effects.
type Validator interface {
	Validate(stepID int, draft Draft) ValidationResult
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(stepID int, draft Draft) ValidationResult

func (f ValidatorFunc) Validate(stepID int, draft Draft) ValidationResult {
	return f(stepID, draft)
}

// TableValidator runs the rule table of a Definition. Steps without rules,
// and unknown step ids, never block.
type TableValidator struct {
	def *Definition
}

func NewTableValidator(def *Definition) *TableValidator {
	return &TableValidator{def: def}
}

// Validate keeps only the first failing rule per error key.
func (v *TableValidator) Validate(stepID int, draft Draft) ValidationResult {
	result := ValidationResult{}
	step, ok := v.def.Step(stepID)
	if !ok {
		return result
	}
	for _, rule := range step.Rules {
		key := rule.Key()
		if _, failed := result[key]; failed {
			continue
		}
		if !rule.applies(draft) {
			continue
		}
		if !ruleChecks[rule.Type](rule, draft[rule.Field]) {
			result[key] = rule.message()
		}
	}
	return result
}

// ValidateAll runs every step and returns the errors by step id.
func (v *TableValidator) ValidateAll(draft Draft) map[int]ValidationResult {
	out := make(map[int]ValidationResult)
	for _, step := range v.def.Steps {
		if res := v.Validate(step.ID, draft); !res.Valid() {
			out[step.ID] = res
		}
	}
	return out
}
