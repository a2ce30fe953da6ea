// Package requirements manages the requirement documents of a project:
// templates, saved form data per requirement type and DOCX generation.
package requirements

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "geoincra-portal/internal/common/errors"
	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/models"
)

type Client struct {
	api    *apihttp.Client
	logger logger.Logger
}

func NewClient(api *apihttp.Client, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{api: api, logger: log}
}

// Templates lists the templates, optionally of one category. Errors yield an empty list.
func (c *Client) Templates(ctx context.Context, category string) []models.Template {
	var query url.Values
	if category = strings.TrimSpace(category); category != "" {
		query = url.Values{"categoria": {category}}
	}
	var out []models.Template
	if err := c.api.DoJSON(ctx, http.MethodGet, "/api/templates", query, nil, &out); err != nil {
		c.logger.Warn("failed to list templates", map[string]interface{}{"error": err.Error()})
		return []models.Template{}
	}
	if out == nil {
		out = []models.Template{}
	}
	return out
}

// List returns the requirements saved for a project. Errors yield an empty list.
func (c *Client) List(ctx context.Context, projectID int64) []models.Requirement {
	var out []models.Requirement
	if err := c.api.DoJSON(ctx, http.MethodGet, projectPath(projectID), nil, nil, &out); err != nil {
		c.logger.Warn("failed to list requirements", map[string]interface{}{
			"projectId": projectID,
			"error":     err.Error(),
		})
		return []models.Requirement{}
	}
	if out == nil {
		out = []models.Requirement{}
	}
	return out
}

// Get returns the requirement of the given type, or nil when absent or unreachable.
func (c *Client) Get(ctx context.Context, projectID int64, reqType string) *models.Requirement {
	var out models.Requirement
	query := url.Values{"tipo": {reqType}}
	if err := c.api.DoJSON(ctx, http.MethodGet, projectPath(projectID)+"/one", query, nil, &out); err != nil {
		c.logger.Debug("requirement not loaded", map[string]interface{}{
			"projectId": projectID,
			"tipo":      reqType,
			"error":     err.Error(),
		})
		return nil
	}
	return &out
}

// Upsert creates or replaces the requirement identified by its type.
func (c *Client) Upsert(ctx context.Context, projectID int64, req models.Requirement) (*models.Requirement, error) {
	if strings.TrimSpace(req.Type) == "" {
		return nil, apperrors.NewPreconditionFailedError("requirement type is required")
	}
	if req.Data == nil {
		req.Data = map[string]interface{}{}
	}
	var out models.Requirement
	if err := c.api.DoJSON(ctx, http.MethodPut, projectPath(projectID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, projectID int64, reqType string) error {
	return c.api.DoJSON(ctx, http.MethodDelete, projectPath(projectID), url.Values{"tipo": {reqType}}, nil, nil)
}

// Generate renders the requirement as a DOCX document.
func (c *Client) Generate(ctx context.Context, projectID int64, reqType string, templateID int64) ([]byte, string, error) {
	query := url.Values{
		"tipo":        {reqType},
		"template_id": {strconv.FormatInt(templateID, 10)},
	}
	return c.api.Download(ctx, projectPath(projectID)+"/generate", query)
}

func projectPath(projectID int64) string {
	return "/api/requerimentos/project/" + strconv.FormatInt(projectID, 10)
}
