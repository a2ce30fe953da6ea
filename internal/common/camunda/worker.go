// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// JobHandler is implemented by every worker package.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

// WorkerOptions configures one job subscription.
type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
	PollInterval  time.Duration
}

type CamundaWorker struct {
	worker worker.JobWorker
	logger *zap.Logger
	opts   WorkerOptions
}

func NewWorker(client zbc.Client, opts WorkerOptions, handler JobHandler, logger *zap.Logger) *CamundaWorker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	logger = logger.With(zap.String("taskType", opts.TaskType))

	jobWorker := client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(dispatch(handler, logger)).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		PollInterval(opts.PollInterval).
		Open()

	return &CamundaWorker{worker: jobWorker, logger: logger, opts: opts}
}

// dispatch adapts a JobHandler to the client's callback. A panicking
// handler is logged and the job left to time out, so the broker hands it
// out again.
func dispatch(handler JobHandler, logger *zap.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panicked",
					zap.String("panic", fmt.Sprint(r)),
					zap.Int64("jobKey", job.Key))
			}
		}()
		if err := handler.Handle(client, job); err != nil {
			logger.Error("handler returned error",
				zap.Error(err),
				zap.Int64("jobKey", job.Key))
		}
	}
}

func (w *CamundaWorker) TaskType() string {
	return w.opts.TaskType
}

// Stop closes the job worker and waits for in-flight jobs; the shared
// client is closed by its owner.
func (w *CamundaWorker) Stop(ctx context.Context) {
	w.logger.Info("stopping worker")
	done := make(chan struct{})
	go func() {
		w.worker.Close()
		w.worker.AwaitClose()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("worker did not stop in time", zap.Error(ctx.Err()))
	}
}
