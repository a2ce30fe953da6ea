// internal/models/requirement.go
package models

import "encoding/json"

// Template is a requirement-document template.
type Template struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

func (t *Template) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Nome        string `json:"nome"`
		Category    string `json:"category"`
		Categoria   string `json:"categoria"`
		Description string `json:"description"`
		Descricao   string `json:"descricao"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.ID = raw.ID
	t.Name = firstNonEmpty(raw.Name, raw.Nome)
	t.Category = firstNonEmpty(raw.Category, raw.Categoria)
	t.Description = firstNonEmpty(raw.Description, raw.Descricao)
	return nil
}

// Requirement is the saved data of one requirement type of a project.
type Requirement struct {
	ID         int64                  `json:"id,omitempty"`
	ProjectID  int64                  `json:"project_id,omitempty"`
	Type       string                 `json:"tipo"`
	TemplateID *int64                 `json:"template_id"`
	Status     string                 `json:"status,omitempty"`
	Data       map[string]interface{} `json:"dados_json"`
}
