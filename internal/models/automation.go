// internal/models/automation.go
package models

import "strconv"

const (
	JobTypeRIDigital = "RI_DIGITAL_MATRICULA"
	JobTypeONR       = "ONR_SIGRI_CONSULTA"

	JobPending    = "PENDING"
	JobProcessing = "PROCESSING"
	JobCompleted  = "COMPLETED"
	JobFailed     = "FAILED"
)

// AutomationJob is a backend automation run (ONR query, RI Digital fetch).
type AutomationJob struct {
	ID           int64              `json:"id"`
	ProjectID    *int64             `json:"project_id"`
	Type         string             `json:"type"`
	Status       string             `json:"status"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    string             `json:"created_at,omitempty"`
	Results      []AutomationResult `json:"resultados,omitempty"`
}

// Active reports whether the job is still running on the backend.
func (j AutomationJob) Active() bool {
	return j.Status == JobPending || j.Status == JobProcessing
}

type AutomationResult struct {
	ID        int64  `json:"id"`
	Protocol  string `json:"protocolo,omitempty"`
	Matricula string `json:"matricula,omitempty"`
}

// ONRQuery is the body of an ONR / SIG-RI consultation job.
type ONRQuery struct {
	ProjectID int64  `json:"project_id"`
	Mode      string `json:"modo"`
	Value     string `json:"valor"`
}

// RIDigitalQuery selects the registry records fetched by an RI Digital job.
type RIDigitalQuery struct {
	StartDate string
	EndDate   string
	ProjectID *int64
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
