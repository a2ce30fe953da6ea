// Package notification announces generated proposals by e-mail, SMS and a
// workflow message. Every side effect here is best effort: failures are
// logged and never reach the wizard.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"geoincra-portal/internal/common/config"
	apperrors "geoincra-portal/internal/common/errors"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/common/metrics"
	"geoincra-portal/internal/models"
)

type EmailSender interface {
	SendText(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phoneNumber, message string) (string, error)
}

var (
	subjectTmpl = template.Must(template.New("subject").Parse(
		`Proposta gerada - projeto {{.ProjectID}}`))
	bodyTmpl = template.Must(template.New("body").Parse(
		`Proposta gerada para o projeto {{.ProjectID}}{{if .Client}} ({{.Client}}){{end}}.
{{if .Municipio}}Município: {{.Municipio}}
{{end}}Valor base: R$ {{printf "%.2f" .BaseValue}}
Adicionais: R$ {{printf "%.2f" .ExtrasValue}}
Total: R$ {{printf "%.2f" .TotalValue}}
{{if .DocumentURL}}Proposta: {{.DocumentURL}}
{{end}}{{if .ContractURL}}Contrato: {{.ContractURL}}
{{end}}`))
	smsTmpl = template.Must(template.New("sms").Parse(
		`GeoINCRA: proposta do projeto {{.ProjectID}} gerada. Total R$ {{printf "%.2f" .TotalValue}}`))
)

type Notifier struct {
	cfg    config.NotificationConfig
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
}

// NewNotifier sends through the channels enabled in cfg; a nil sender
// disables its channel.
func NewNotifier(cfg config.NotificationConfig, email EmailSender, sms SMSSender, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Notifier{
		cfg:    cfg,
		email:  email,
		sms:    sms,
		logger: log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// Notify sends the proposal summary and reports one entry per channel.
func (n *Notifier) Notify(ctx context.Context, event models.ProposalGenerated) []models.Notification {
	return []models.Notification{
		n.sendEmail(ctx, event),
		n.sendSMS(ctx, event),
	}
}

func (n *Notifier) sendEmail(ctx context.Context, event models.ProposalGenerated) models.Notification {
	out := models.Notification{Channel: models.ChannelEmail}
	if !n.cfg.Email.Enabled || n.email == nil || len(n.cfg.Email.To) == 0 {
		out.Status = models.NotificationDisabled
		return out
	}
	out.Recipient = n.cfg.Email.To[0]

	subject, err := render(subjectTmpl, event)
	if err == nil {
		var body string
		if body, err = render(bodyTmpl, event); err == nil {
			out.MessageID, err = n.email.SendText(ctx, n.cfg.Email.FromEmail, n.cfg.Email.To, subject, body)
		}
	}
	return n.finish(out, err)
}

func (n *Notifier) sendSMS(ctx context.Context, event models.ProposalGenerated) models.Notification {
	out := models.Notification{Channel: models.ChannelSMS}
	if !n.cfg.SMS.Enabled || n.sms == nil || n.cfg.SMS.PhoneNumber == "" {
		out.Status = models.NotificationDisabled
		return out
	}
	out.Recipient = n.cfg.SMS.PhoneNumber

	msg, err := render(smsTmpl, event)
	if err == nil {
		out.MessageID, err = n.sms.SendSMS(ctx, n.cfg.SMS.PhoneNumber, msg)
	}
	return n.finish(out, err)
}

func (n *Notifier) finish(out models.Notification, err error) models.Notification {
	if err != nil {
		stdErr := apperrors.NewNotificationSendFailedError(out.Channel, err)
		out.Status = models.NotificationFailed
		out.Error = stdErr.Error()
		n.logger.Error("notification failed", map[string]interface{}{
			"channel":   out.Channel,
			"recipient": out.Recipient,
			"error":     stdErr,
		})
	} else {
		out.Status = models.NotificationSent
		n.logger.Info("notification sent", map[string]interface{}{
			"channel":   out.Channel,
			"messageId": out.MessageID,
		})
	}
	metrics.NotificationsSent.WithLabelValues(out.Channel, out.Status).Inc()
	return out
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
