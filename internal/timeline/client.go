// Package timeline manages the stages of a project schedule. The backend
// has no update endpoint: progress changes are recorded as new entries.
package timeline

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apperrors "geoincra-portal/internal/common/errors"
	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/models"
)

// DefaultStages are the stage names offered when building a schedule.
var DefaultStages = []string{
	"Upload de Documentos",
	"Extração de Dados (OCR)",
	"Solicitação de Matrículas",
	"Validação de Dados",
	"Processamento AutoCAD",
	"Geração de Peças Técnicas",
	"Revisão Final",
	"Entrega ao Cliente",
}

type Client struct {
	api *apihttp.Client
}

func NewClient(api *apihttp.Client) *Client {
	return &Client{api: api}
}

// AddStage creates a pending stage. A blank description is sent as null.
func (c *Client) AddStage(ctx context.Context, projectID int64, title, description string) (*models.TimelineEntry, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.NewPreconditionFailedError("stage title is required")
	}
	return c.post(ctx, projectID, title, optional(description), models.StagePending)
}

// UpdateProgress records the stage again with the status derived from progress.
func (c *Client) UpdateProgress(ctx context.Context, current models.TimelineEntry, progress int) (*models.TimelineEntry, error) {
	if progress < 0 || progress > 100 {
		return nil, apperrors.NewPreconditionFailedError(fmt.Sprintf("progress %d out of range 0..100", progress))
	}
	var desc *string
	if current.Description != nil {
		desc = optional(*current.Description)
	}
	return c.post(ctx, current.ProjectID, current.Title, desc, models.StageStatus(progress))
}

func (c *Client) Delete(ctx context.Context, entryID int64) error {
	return c.api.DoJSON(ctx, http.MethodDelete, "/api/timeline/"+strconv.FormatInt(entryID, 10), nil, nil, nil)
}

func (c *Client) post(ctx context.Context, projectID int64, title string, desc *string, status string) (*models.TimelineEntry, error) {
	entry := models.TimelineEntry{
		ProjectID:   projectID,
		Title:       title,
		Description: desc,
		Status:      status,
	}
	path := fmt.Sprintf("/api/projects/%d/timeline/", projectID)
	var out models.TimelineEntry
	if err := c.api.DoJSON(ctx, http.MethodPost, path, nil, entry, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
