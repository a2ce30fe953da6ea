package generateproposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "geoincra-portal/internal/common/errors"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/common/metrics"
	"geoincra-portal/internal/budget"
	"geoincra-portal/internal/wizard"
)

const TaskType = "generate-proposal"

// Handler drives the budget wizard headless: the job's draft is walked
// through every step gate and submitted from the final step.
type Handler struct {
	config    *Config
	submitter wizard.Submitter
	hooks     []wizard.SubmittedHook
	logger    logger.Logger
	errors    *apperrors.JobErrorHandler
}

type HandlerOptions struct {
	Config    *Config
	Submitter wizard.Submitter
	// Hooks run after a successful submission, as they do for interactive sessions.
	Hooks  []wizard.SubmittedHook
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Submitter == nil {
		return nil, errors.New("submitter is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    cfg,
		submitter: opts.Submitter,
		hooks:     opts.Hooks,
		logger:    log,
		errors:    apperrors.NewJobErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.GetKey(),
		"workflowKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err)
		return nil
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return nil
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("build complete command: %w", err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		return fmt.Errorf("complete job %d: %w", job.GetKey(), err)
	}

	h.logger.Info("proposal generated", map[string]interface{}{
		"jobKey":     job.GetKey(),
		"projectId":  input.ProjectID,
		"totalValue": output.TotalValue,
	})
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	return nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, &apperrors.StandardError{
			Code:      apperrors.ErrCodeValidationFailed,
			Message:   "Failed to parse job variables",
			Details:   err.Error(),
			Timestamp: time.Now().UTC(),
		}
	}

	result, err := inputSchema.Validate(variables)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, &apperrors.StandardError{
			Code:      apperrors.ErrCodeValidationFailed,
			Message:   "Input validation failed",
			Details:   strings.Join(result.GetErrorMessages(), "; "),
			Timestamp: time.Now().UTC(),
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, apperrors.NewSerializationFailedError(err)
	}
	return &input, nil
}

// Execute fills a fresh budget wizard with the draft, advances it to the
// final step and submits it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	opts := []wizard.Option{
		wizard.WithTarget(input.ProjectID),
		wizard.WithLogger(h.logger),
	}
	for _, hook := range h.hooks {
		opts = append(opts, wizard.OnSubmitted(hook))
	}
	c := budget.New(h.submitter, opts...)

	if len(input.Draft) > 0 {
		if err := c.Merge(wizard.Draft(input.Draft)); err != nil {
			return nil, err
		}
	}

	last := c.Definition().Len()
	for c.State().Step < last {
		step := c.State().Step
		res, err := c.Next()
		if err != nil {
			return nil, apperrors.NewInvalidTransitionError(err.Error())
		}
		if !res.Valid() {
			return nil, apperrors.NewValidationFailedError(step, res)
		}
	}

	outcome, err := c.Submit(ctx)
	if err != nil {
		return nil, apperrors.NewInvalidTransitionError(err.Error())
	}
	if !outcome.Validation.Valid() {
		return nil, apperrors.NewValidationFailedError(last, outcome.Validation)
	}

	if err := resultError(outcome.Result); err != nil {
		return nil, err
	}

	result, err := budget.Decode(outcome.Result)
	if err != nil {
		return nil, apperrors.NewBackendUnavailableError("portal", err)
	}
	return &Output{
		ProposalGenerated: true,
		BaseValue:         result.BaseValue,
		ExtrasValue:       result.ExtrasValue,
		TotalValue:        result.TotalValue,
		DocumentURL:       result.DocumentURL,
		ContractURL:       result.ContractURL,
	}, nil
}

func resultError(result *wizard.SubmissionResult) error {
	if result == nil {
		return apperrors.NewBackendUnavailableError("portal", errors.New("no submission result"))
	}
	switch result.Kind {
	case wizard.ResultSuccess:
		return nil
	case wizard.ResultPrecondition:
		return apperrors.NewPreconditionFailedError(result.Message)
	case wizard.ResultValidationError:
		return apperrors.NewSubmissionRejectedError(result.StatusCode, result.Message)
	default:
		return apperrors.NewBackendUnavailableError("portal", errors.New(result.Message))
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := apperrors.AsStandardError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, stdErr)
}
