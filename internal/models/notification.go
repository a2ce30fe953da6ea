// internal/models/notification.go
package models

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"

	NotificationSent     = "sent"
	NotificationFailed   = "failed"
	NotificationDisabled = "disabled"
)

// Notification records one message sent after a proposal was generated.
type Notification struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ProposalGenerated is the payload shared by notifications and the
// workflow message published after a successful submission.
type ProposalGenerated struct {
	ProjectID   string  `json:"projectId"`
	Client      string  `json:"client,omitempty"`
	Municipio   string  `json:"municipio,omitempty"`
	BaseValue   float64 `json:"baseValue"`
	ExtrasValue float64 `json:"extrasValue"`
	TotalValue  float64 `json:"totalValue"`
	DocumentURL string  `json:"documentUrl,omitempty"`
	ContractURL string  `json:"contractUrl,omitempty"`
}
