package wizard

import (
	"sync"
)

// Draft is the flat record assembled across the steps of a wizard.
// Values are strings, numbers, booleans or nil.
type Draft map[string]interface{}

// Clone returns a shallow copy; draft values are scalars.
func (d Draft) Clone() Draft {
	out := make(Draft, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String returns the value of field as text ("" for nil or missing).
func (d Draft) String(field string) string {
	s, _ := AsString(d[field])
	return s
}

// ValidationResult maps a field name to its error message. An empty
// result means the step may be left forward.
type ValidationResult map[string]string

func (v ValidationResult) Valid() bool {
	return len(v) == 0
}

func (v ValidationResult) Clone() ValidationResult {
	out := make(ValidationResult, len(v))
	for k, msg := range v {
		out[k] = msg
	}
	return out
}

// DraftStore holds a draft and the last computed field errors. It never
// validates; each mutation only drops the error of the fields it touches.
type DraftStore struct {
	mu     sync.RWMutex
	draft  Draft
	errors ValidationResult
}

func NewDraftStore(initial Draft) *DraftStore {
	return &DraftStore{
		draft:  initial.Clone(),
		errors: ValidationResult{},
	}
}

// Get returns a copy of the current draft.
func (s *DraftStore) Get() Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.Clone()
}

func (s *DraftStore) Value(field string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.draft[field]
	return v, ok
}

// Set overwrites one field and keeps every other one.
func (s *DraftStore) Set(field string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft[field] = value
	delete(s.errors, field)
}

// Merge overwrites the fields present in partial.
func (s *DraftStore) Merge(partial Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range partial {
		s.draft[k] = v
		delete(s.errors, k)
	}
}

// Reset replaces the whole draft and forgets every error.
func (s *DraftStore) Reset(initial Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = initial.Clone()
	s.errors = ValidationResult{}
}

// Errors returns a copy of the last computed errors.
func (s *DraftStore) Errors() ValidationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors.Clone()
}

// SetErrors replaces the computed errors.
func (s *DraftStore) SetErrors(errs ValidationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = errs.Clone()
}

func (s *DraftStore) SetError(field, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[field] = message
}

func (s *DraftStore) ClearError(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errors, field)
}
