package resolvemunicipality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "geoincra-portal/internal/common/errors"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/common/metrics"
	"geoincra-portal/internal/models"
)

const TaskType = "resolve-municipality"

// Searcher is satisfied by municipality.Cache.
type Searcher interface {
	Search(ctx context.Context, query, state string) []models.Municipality
}

type Handler struct {
	config   *Config
	searcher Searcher
	logger   logger.Logger
	errors   *apperrors.JobErrorHandler
}

func NewHandler(cfg *Config, searcher Searcher, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   cfg,
		searcher: searcher,
		logger:   log,
		errors:   apperrors.NewJobErrorHandler(log),
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

// Execute looks the query up through the shared cache. Lookup failures are
// already degraded to an empty list by the cache, so only an empty query
// fails the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.Query) == "" {
		return nil, apperrors.NewPreconditionFailedError("query is required")
	}
	state := strings.TrimSpace(input.State)
	if state == "" {
		state = h.config.DefaultState
	}

	matches := h.searcher.Search(ctx, input.Query, state)
	out := &Output{Municipalities: matches, Count: len(matches)}
	if len(matches) == 1 {
		out.Resolved = &matches[0]
	}
	return out, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := apperrors.AsStandardError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, stdErr)
}
