package notification

import (
	"context"
	"encoding/json"
	"time"

	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/models"
	"geoincra-portal/internal/wizard"
)

// MessageProposalGenerated is the workflow message correlated by project id.
const MessageProposalGenerated = "proposal-generated"

// MessagePublisher publishes workflow messages.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, variables map[string]interface{}) error
}

// EventFrom builds the announcement of a successful submission.
func EventFrom(targetID string, draft wizard.Draft, result wizard.SubmissionResult) models.ProposalGenerated {
	event := models.ProposalGenerated{
		ProjectID: targetID,
		Client:    draft.String("cliente"),
		Municipio: draft.String("municipio"),
	}
	if len(result.Body) > 0 {
		var totals models.ProposalResult
		if err := json.Unmarshal(result.Body, &totals); err == nil {
			event.BaseValue = totals.BaseValue
			event.ExtrasValue = totals.ExtrasValue
			event.TotalValue = totals.TotalValue
			event.DocumentURL = totals.DocumentURL
			event.ContractURL = totals.ContractURL
		}
	}
	return event
}

// NotifyHook sends the notifications after a successful submission. It
// runs detached from the request so a slow channel never delays the answer.
func NotifyHook(n *Notifier, timeout time.Duration) wizard.SubmittedHook {
	return func(ctx context.Context, targetID string, draft wizard.Draft, result wizard.SubmissionResult) {
		event := EventFrom(targetID, draft, result)
		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
			defer cancel()
			n.Notify(ctx, event)
		}()
	}
}

// PublishHook correlates the proposal-generated message with the project's
// process instance.
func PublishHook(p MessagePublisher, log logger.Logger) wizard.SubmittedHook {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return func(ctx context.Context, targetID string, draft wizard.Draft, result wizard.SubmissionResult) {
		event := EventFrom(targetID, draft, result)
		vars := map[string]interface{}{
			"projectId":   event.ProjectID,
			"baseValue":   event.BaseValue,
			"extrasValue": event.ExtrasValue,
			"totalValue":  event.TotalValue,
			"documentUrl": event.DocumentURL,
			"contractUrl": event.ContractURL,
		}
		if err := p.PublishMessage(ctx, MessageProposalGenerated, targetID, vars); err != nil {
			log.Warn("failed to publish workflow message", map[string]interface{}{
				"message":   MessageProposalGenerated,
				"projectId": targetID,
				"error":     err.Error(),
			})
		}
	}
}
