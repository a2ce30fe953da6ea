// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// JobErrorHandler fails or throws workflow jobs from StandardErrors.
type JobErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewJobErrorHandler(logger Logger) *JobErrorHandler {
	return &JobErrorHandler{logger: logger}
}

// HandleJobError fails the job with retries when the error is transient and
// the job still has retries left; otherwise it throws a business error.
func (h *JobErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := AsStandardError(err)
	jobErr := ToJobError(stdErr)

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        jobErr.Code,
		"message":          stdErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})

	vars := jobErrorVariables(stdErr)

	if jobErr.Retries > 0 && job.Retries > 0 {
		retries := jobErr.Retries
		if int(job.Retries) < retries {
			retries = int(job.Retries)
		}
		// Retries counts what is left after this attempt.
		cmd := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(int32(retries - 1)).
			ErrorMessage(stdErr.Message)
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, _ = withVars.Send(ctx)
			return
		}
		_, _ = cmd.Send(ctx)
		return
	}

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(jobErr.Code).
		ErrorMessage(stdErr.Message)
	if withVars, err := cmd.VariablesFromString(vars); err == nil {
		_, _ = withVars.Send(ctx)
		return
	}
	_, _ = cmd.Send(ctx)
}

func jobErrorVariables(stdErr *StandardError) string {
	vars := map[string]interface{}{
		"errorCode":    string(stdErr.Code),
		"errorMessage": stdErr.Message,
		"errorDetails": stdErr.Details,
		"retryable":    stdErr.Retryable,
		"timestamp":    stdErr.Timestamp,
	}
	for k, v := range stdErr.Metadata {
		vars["error_"+k] = v
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return "{}"
	}
	return string(data)
}
