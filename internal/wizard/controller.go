// Package wizard implements a form-agnostic multi-step wizard: a draft
// shared by ordered steps, a validation gate before each forward move and
// a guarded terminal submission.
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/common/metrics"
)

var (
	ErrAtLastStep     = errors.New("AT_LAST_STEP")
	ErrAtFirstStep    = errors.New("AT_FIRST_STEP")
	ErrNotFinalStep   = errors.New("NOT_FINAL_STEP")
	ErrSubmitInFlight = errors.New("SUBMIT_IN_FLIGHT")
	ErrCompleted      = errors.New("WIZARD_COMPLETED")
	ErrInvalidStep    = errors.New("INVALID_STEP")
)

// FieldSubmit is the error key of submission-level failures.
const FieldSubmit = "submit"

// MsgNoTarget is the precondition error when no target entity is selected.
const MsgNoTarget = "no entity selected"

type Phase string

const (
	PhaseStep       Phase = "step"
	PhaseSubmitting Phase = "submitting"
	PhaseSubmitted  Phase = "submitted"
)

// State is the position of a wizard in its state machine.
type State struct {
	Phase Phase `json:"phase"`
	Step  int   `json:"step"`
}

func (s State) String() string {
	if s.Phase == PhaseStep {
		return fmt.Sprintf("Step(%d)", s.Step)
	}
	return string(s.Phase)
}

type ResultKind string

const (
	ResultSuccess         ResultKind = "success"
	ResultValidationError ResultKind = "validation_error"
	ResultServerError     ResultKind = "server_error"
	ResultPrecondition    ResultKind = "precondition"
)

// SubmissionResult is the outcome of one submission attempt.
type SubmissionResult struct {
	Success    bool            `json:"success"`
	Kind       ResultKind      `json:"kind"`
	Body       json.RawMessage `json:"body,omitempty"`
	Message    string          `json:"message,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
}

func Success(body json.RawMessage, status int) SubmissionResult {
	return SubmissionResult{Success: true, Kind: ResultSuccess, Body: body, StatusCode: status}
}

func Failure(kind ResultKind, message string, status int) SubmissionResult {
	return SubmissionResult{Kind: kind, Message: message, StatusCode: status}
}

// Submitter sends a finished draft to the backend. Implementations never
// return transport errors: they are folded into a failed SubmissionResult.
type Submitter interface {
	Submit(ctx context.Context, draft Draft, targetID string) SubmissionResult
}

// Precondition checks local context before any network call. A non-nil
// error blocks the submission and its message is shown under FieldSubmit.
type Precondition func(targetID string, draft Draft) error

// RequireTarget is the default precondition: a target entity must be selected.
func RequireTarget(targetID string, draft Draft) error {
	if targetID == "" {
		return errors.New(MsgNoTarget)
	}
	return nil
}

// SubmittedHook runs after a successful submission, outside the controller lock.
type SubmittedHook func(ctx context.Context, targetID string, draft Draft, result SubmissionResult)

// SubmitOutcome reports what a Submit call did.
type SubmitOutcome struct {
	Validation ValidationResult  `json:"validation,omitempty"`
	Result     *SubmissionResult `json:"result,omitempty"`
	// Stale is set when the wizard was reset while the request was in flight;
	// the result was not applied.
	Stale bool `json:"stale,omitempty"`
}

// Snapshot is a consistent copy of a controller's observable state.
type Snapshot struct {
	Kind       string            `json:"kind"`
	State      State             `json:"state"`
	Steps      int               `json:"steps"`
	Label      string            `json:"label"`
	TargetID   string            `json:"targetId,omitempty"`
	Draft      Draft             `json:"draft"`
	Errors     ValidationResult  `json:"errors"`
	Generation uint64            `json:"generation"`
	Result     *SubmissionResult `json:"result,omitempty"`
}

// Controller owns the draft and the step pointer of one wizard session.
type Controller struct {
	mu sync.Mutex

	def           *Definition
	validator     Validator
	submitter     Submitter
	store         *DraftStore
	preconditions []Precondition
	hooks         []SubmittedHook
	logger        logger.Logger

	step       int
	phase      Phase
	targetID   string
	generation uint64
	lastResult *SubmissionResult
}

type Option func(*Controller)

func WithValidator(v Validator) Option {
	return func(c *Controller) { c.validator = v }
}

// WithPreconditions replaces the default RequireTarget precondition.
func WithPreconditions(p ...Precondition) Option {
	return func(c *Controller) { c.preconditions = p }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func OnSubmitted(h SubmittedHook) Option {
	return func(c *Controller) { c.hooks = append(c.hooks, h) }
}

func WithTarget(targetID string) Option {
	return func(c *Controller) { c.targetID = targetID }
}

// NewController starts a wizard at Step(1) with the definition's initial draft.
func NewController(def *Definition, submitter Submitter, opts ...Option) *Controller {
	c := &Controller{
		def:           def,
		validator:     NewTableValidator(def),
		submitter:     submitter,
		store:         NewDraftStore(def.InitialDraft()),
		preconditions: []Precondition{RequireTarget},
		logger:        logger.NewNoOpLogger(),
		step:          1,
		phase:         PhaseStep,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithFields(map[string]interface{}{"wizard": def.Kind})
	return c
}

func (c *Controller) Kind() string {
	return c.def.Kind
}

func (c *Controller) Definition() *Definition {
	return c.def
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Phase: c.phase, Step: c.step}
}

func (c *Controller) Draft() Draft {
	return c.store.Get()
}

func (c *Controller) Errors() ValidationResult {
	return c.store.Errors()
}

func (c *Controller) TargetID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetID
}

func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// LastResult is the result of the latest applied submission attempt.
func (c *Controller) LastResult() *SubmissionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastResult == nil {
		return nil
	}
	r := *c.lastResult
	return &r
}

// Set updates one draft field.
func (c *Controller) Set(field string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitted {
		return ErrCompleted
	}
	c.store.Set(field, value)
	return nil
}

// Merge updates several draft fields at once.
func (c *Controller) Merge(partial Draft) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitted {
		return ErrCompleted
	}
	c.store.Merge(partial)
	return nil
}

// SetTarget selects the entity the draft will be submitted to.
func (c *Controller) SetTarget(targetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitted {
		return ErrCompleted
	}
	c.targetID = targetID
	c.store.ClearError(FieldSubmit)
	return nil
}

// Validate computes the errors of the current step without moving.
func (c *Controller) Validate() ValidationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.validator.Validate(c.step, c.store.Get())
	c.store.SetErrors(res)
	return res
}

func (c *Controller) editable() error {
	switch c.phase {
	case PhaseSubmitting:
		return ErrSubmitInFlight
	case PhaseSubmitted:
		return ErrCompleted
	}
	return nil
}

// Next advances to the following step when the current one validates.
// A failed validation is not an error: the state is unchanged and the
// field errors are returned.
func (c *Controller) Next() (ValidationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editable(); err != nil {
		return nil, err
	}
	if c.step >= c.def.Len() {
		return nil, ErrAtLastStep
	}

	res := c.validator.Validate(c.step, c.store.Get())
	c.store.SetErrors(res)
	if !res.Valid() {
		c.record("next", "invalid")
		c.logger.Debug("step validation failed", map[string]interface{}{
			"step":   c.step,
			"fields": len(res),
		})
		return res, nil
	}

	c.step++
	c.record("next", "ok")
	return res, nil
}

// Prev moves back one step unconditionally.
func (c *Controller) Prev() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editable(); err != nil {
		return err
	}
	if c.step <= 1 {
		return ErrAtFirstStep
	}
	c.step--
	c.store.SetErrors(ValidationResult{})
	c.record("prev", "ok")
	return nil
}

// Submit sends the draft from the final step. Validation and precondition
// failures are reported in the outcome, not as errors; a call made while
// another submission is in flight returns ErrSubmitInFlight and does nothing.
func (c *Controller) Submit(ctx context.Context) (SubmitOutcome, error) {
	c.mu.Lock()

	if err := c.editable(); err != nil {
		c.mu.Unlock()
		return SubmitOutcome{}, err
	}
	if c.step != c.def.Len() {
		c.mu.Unlock()
		return SubmitOutcome{}, ErrNotFinalStep
	}

	draft := c.store.Get()
	res := c.validator.Validate(c.step, draft)
	c.store.SetErrors(res)
	if !res.Valid() {
		c.record("submit", "invalid")
		c.mu.Unlock()
		return SubmitOutcome{Validation: res}, nil
	}

	for _, check := range c.preconditions {
		if err := check(c.targetID, draft); err != nil {
			failure := Failure(ResultPrecondition, err.Error(), 0)
			c.lastResult = &failure
			c.store.SetError(FieldSubmit, failure.Message)
			c.record("submit", string(ResultPrecondition))
			metrics.WizardSubmissions.WithLabelValues(c.def.Kind, string(ResultPrecondition)).Inc()
			c.mu.Unlock()
			return SubmitOutcome{Validation: res, Result: &failure}, nil
		}
	}

	c.phase = PhaseSubmitting
	c.lastResult = nil
	gen := c.generation
	target := c.targetID
	c.mu.Unlock()

	start := time.Now()
	result := c.submitter.Submit(ctx, draft, target)
	metrics.WizardSubmissionDuration.WithLabelValues(c.def.Kind).Observe(time.Since(start).Seconds())
	metrics.WizardSubmissions.WithLabelValues(c.def.Kind, string(result.Kind)).Inc()

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		c.logger.Info("discarding stale submission result", map[string]interface{}{
			"generation": gen,
			"kind":       result.Kind,
		})
		return SubmitOutcome{Validation: res, Result: &result, Stale: true}, nil
	}

	c.lastResult = &result
	if !result.Success {
		c.phase = PhaseStep
		c.store.SetError(FieldSubmit, result.Message)
		c.record("submit", string(result.Kind))
		c.mu.Unlock()
		c.logger.Warn("submission failed", map[string]interface{}{
			"targetId": target,
			"kind":     result.Kind,
			"status":   result.StatusCode,
			"message":  result.Message,
		})
		return SubmitOutcome{Validation: res, Result: &result}, nil
	}

	c.phase = PhaseSubmitted
	c.record("submit", string(ResultSuccess))
	hooks := append([]SubmittedHook(nil), c.hooks...)
	c.mu.Unlock()

	c.logger.Info("submission succeeded", map[string]interface{}{"targetId": target})
	for _, hook := range hooks {
		hook(ctx, target, draft, result)
	}
	return SubmitOutcome{Validation: res, Result: &result}, nil
}

// Reset returns to Step(1) with initial (the definition's initial draft when
// nil). Responses of submissions started before the reset are ignored.
func (c *Controller) Reset(initial Draft) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if initial == nil {
		initial = c.def.InitialDraft()
	}
	c.generation++
	c.store.Reset(initial)
	c.step = 1
	c.phase = PhaseStep
	c.lastResult = nil
	c.record("reset", "ok")
}

// Restore repositions a fresh controller from persisted state.
func (c *Controller) Restore(step int, targetID string, draft Draft, generation uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if step < 1 || step > c.def.Len() {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidStep, step, c.def.Len())
	}
	c.step = step
	c.phase = PhaseStep
	c.targetID = targetID
	c.generation = generation
	c.store.Reset(draft)
	return nil
}

// Snapshot returns a consistent copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Kind:       c.def.Kind,
		State:      State{Phase: c.phase, Step: c.step},
		Steps:      c.def.Len(),
		TargetID:   c.targetID,
		Draft:      c.store.Get(),
		Errors:     c.store.Errors(),
		Generation: c.generation,
	}
	if step, ok := c.def.Step(c.step); ok {
		snap.Label = step.Label
	}
	if c.lastResult != nil {
		r := *c.lastResult
		snap.Result = &r
	}
	return snap
}

func (c *Controller) record(action, outcome string) {
	metrics.WizardTransitions.WithLabelValues(c.def.Kind, action, outcome).Inc()
}
