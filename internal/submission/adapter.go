// Package submission turns a finished wizard draft into a backend request
// and classifies the answer.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "geoincra-portal/internal/common/errors"
	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/common/observability"
	"geoincra-portal/internal/common/validation"
	"geoincra-portal/internal/wizard"
)

// FallbackMessage is shown when a failed answer carries no readable detail.
const FallbackMessage = "failed to generate proposal"

// Adapter implements wizard.Submitter against one backend endpoint.
type Adapter struct {
	client   *apihttp.Client
	method   string
	path     string
	fields   FieldMap
	contract *validation.Schema
	obs      *observability.Observability
	logger   logger.Logger
	fallback string
}

type Option func(*Adapter)

// WithContract checks every payload against a JSON schema before sending.
func WithContract(s *validation.Schema) Option {
	return func(a *Adapter) { a.contract = s }
}

func WithObservability(o *observability.Observability) Option {
	return func(a *Adapter) { a.obs = o }
}

func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithMethod(method string) Option {
	return func(a *Adapter) { a.method = method }
}

func WithFallbackMessage(msg string) Option {
	return func(a *Adapter) { a.fallback = msg }
}

// NewAdapter posts to pathTemplate, whose single %s receives the escaped
// target id.
func NewAdapter(client *apihttp.Client, pathTemplate string, fields FieldMap, opts ...Option) *Adapter {
	a := &Adapter{
		client:   client,
		method:   http.MethodPost,
		path:     pathTemplate,
		fields:   fields,
		logger:   logger.NewNoOpLogger(),
		fallback: FallbackMessage,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Payload is the request body the draft serializes to.
func (a *Adapter) Payload(draft wizard.Draft) (map[string]interface{}, error) {
	payload, err := a.fields.Serialize(draft)
	if err != nil {
		return nil, err
	}
	if a.contract != nil {
		vr, err := a.contract.Validate(payload)
		if err != nil {
			return nil, err
		}
		if !vr.Valid {
			return nil, apperrors.NewContractViolationError(strings.Join(vr.GetErrorMessages(), "; "))
		}
	}
	return payload, nil
}

func (a *Adapter) Submit(ctx context.Context, draft wizard.Draft, targetID string) wizard.SubmissionResult {
	ctx, span := a.startSpan(ctx, targetID)
	defer span.End()

	start := time.Now()
	result := a.submit(ctx, draft, targetID)

	span.SetAttributes(
		attribute.String("submission.result", string(result.Kind)),
		attribute.Int("http.status_code", result.StatusCode),
	)
	if !result.Success {
		span.SetStatus(codes.Error, result.Message)
	}
	if a.obs != nil {
		a.obs.RecordSubmitDuration(ctx, time.Since(start), string(result.Kind))
	}
	return result
}

func (a *Adapter) submit(ctx context.Context, draft wizard.Draft, targetID string) wizard.SubmissionResult {
	payload, err := a.Payload(draft)
	if err != nil {
		return wizard.Failure(wizard.ResultPrecondition, err.Error(), 0)
	}

	req, err := a.client.NewRequest(ctx, a.method, fmt.Sprintf(a.path, url.PathEscape(targetID)), nil, payload)
	if err != nil {
		a.logger.Warn("could not build submission request", map[string]interface{}{"error": err.Error()})
		return wizard.Failure(wizard.ResultPrecondition, err.Error(), 0)
	}

	data, status, err := a.client.Send(req)
	if err != nil {
		return a.classify(err, status)
	}

	var body json.RawMessage
	if json.Valid(data) {
		body = data
	} else if len(data) > 0 {
		a.logger.Warn("success answer is not JSON", map[string]interface{}{"status": status})
	}
	return wizard.Success(body, status)
}

func (a *Adapter) classify(err error, status int) wizard.SubmissionResult {
	var apiErr *apihttp.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == apihttp.DefaultErrorMessage {
			msg = a.fallback
		}
		if apiErr.ClientError() {
			return wizard.Failure(wizard.ResultValidationError, msg, apiErr.StatusCode)
		}
		return wizard.Failure(wizard.ResultServerError, msg, apiErr.StatusCode)
	}
	a.logger.Error("submission transport failure", map[string]interface{}{"error": err.Error()})
	return wizard.Failure(wizard.ResultServerError, err.Error(), status)
}

func (a *Adapter) startSpan(ctx context.Context, targetID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("submission.target", targetID),
		attribute.String("submission.path", a.path),
	}
	if a.obs != nil {
		return a.obs.StartSpan(ctx, "wizard.submit", attrs...)
	}
	return otel.Tracer("geoincra-portal").Start(ctx, "wizard.submit", trace.WithAttributes(attrs...))
}
