// internal/models/document.go
package models

// Document is a file uploaded to a project.
type Document struct {
	ID               int64  `json:"id"`
	ProjectID        int64  `json:"project_id"`
	OriginalFilename string `json:"original_filename,omitempty"`
	StoredFilename   string `json:"stored_filename,omitempty"`
	DocType          string `json:"doc_type,omitempty"`
	UploadedAt       string `json:"uploaded_at,omitempty"`
}

// DisplayName is the best filename available for downloads.
func (d Document) DisplayName() string {
	if d.OriginalFilename != "" {
		return d.OriginalFilename
	}
	if d.StoredFilename != "" {
		return d.StoredFilename
	}
	return "documento_" + itoa(d.ID)
}
