// Package automation starts and tracks backend automation jobs (ONR / SIG-RI
// consultations and RI Digital registry fetches).
package automation

import (
	"context"
	"fmt"
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

// StartONR normalizes the query (upper-cased mode, trimmed value) and creates the job.
func (c *Client) StartONR(ctx context.Context, q models.ONRQuery) (*models.AutomationJob, error) {
	q.Mode = strings.ToUpper(strings.TrimSpace(q.Mode))
	q.Value = strings.TrimSpace(q.Value)
	if q.Mode == "" || q.Value == "" {
		return nil, apperrors.NewPreconditionFailedError("onr query needs a mode and a value")
	}
	var job models.AutomationJob
	if err := c.api.DoJSON(ctx, http.MethodPost, "/api/automacoes/onr/consulta/jobs", nil, q, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// StartRIDigital creates the job; its parameters travel in the query string.
func (c *Client) StartRIDigital(ctx context.Context, q models.RIDigitalQuery) (*models.AutomationJob, error) {
	params := url.Values{
		"data_inicio": {q.StartDate},
		"data_fim":    {q.EndDate},
		"project_id":  {""},
	}
	if q.ProjectID != nil {
		params.Set("project_id", strconv.FormatInt(*q.ProjectID, 10))
	}
	var job models.AutomationJob
	if err := c.api.DoJSON(ctx, http.MethodPost, "/api/automacoes/ri-digital/matriculas/jobs", params, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Jobs lists every job. Errors yield an empty list.
func (c *Client) Jobs(ctx context.Context) []models.AutomationJob {
	var out []models.AutomationJob
	if err := c.api.DoJSON(ctx, http.MethodGet, "/api/automacoes/jobs", nil, nil, &out); err != nil {
		c.logger.Warn("failed to list automation jobs", map[string]interface{}{"error": err.Error()})
		return []models.AutomationJob{}
	}
	if out == nil {
		out = []models.AutomationJob{}
	}
	return out
}

// Job returns one job with its results, or nil when it cannot be loaded.
func (c *Client) Job(ctx context.Context, jobID int64) *models.AutomationJob {
	var job models.AutomationJob
	if err := c.api.DoJSON(ctx, http.MethodGet, "/api/automacoes/jobs/"+strconv.FormatInt(jobID, 10), nil, nil, &job); err != nil {
		c.logger.Debug("automation job not loaded", map[string]interface{}{"jobId": jobID, "error": err.Error()})
		return nil
	}
	return &job
}

// ResultDownloadURL is the absolute download link of one job result.
func (c *Client) ResultDownloadURL(resultID int64) string {
	return fmt.Sprintf("%s/api/automacoes/results/%d/download", c.api.BaseURL(), resultID)
}
