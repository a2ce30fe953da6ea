// internal/models/timeline.go
package models

const (
	StagePending    = "Pendente"
	StageInProgress = "Em Andamento"
	StageDone       = "Concluído"
)

// TimelineEntry is one stage of a project schedule.
type TimelineEntry struct {
	ID              int64   `json:"id,omitempty"`
	ProjectID       int64   `json:"project_id"`
	Title           string  `json:"titulo"`
	Description     *string `json:"descricao"`
	Status          string  `json:"status"`
	CreatedByUserID *int64  `json:"created_by_user_id"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// StageStatus maps a progress percentage to the backend status label.
func StageStatus(progress int) string {
	switch {
	case progress >= 100:
		return StageDone
	case progress > 0:
		return StageInProgress
	default:
		return StagePending
	}
}
