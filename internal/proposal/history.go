package proposal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/models"
)

// History lists the proposals generated for a project.
type History struct {
	client *apihttp.Client
	logger logger.Logger
}

func NewHistory(client *apihttp.Client, log logger.Logger) *History {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &History{client: client, logger: log}
}

// List never fails; any error yields an empty list.
func (h *History) List(ctx context.Context, projectID string) []models.ProposalRecord {
	var out []models.ProposalRecord
	path := fmt.Sprintf("/api/propostas/history/%s", url.PathEscape(projectID))
	if err := h.client.DoJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		h.logger.Warn("failed to load proposal history", map[string]interface{}{
			"projectId": projectID,
			"error":     err.Error(),
		})
		return []models.ProposalRecord{}
	}
	if out == nil {
		out = []models.ProposalRecord{}
	}
	return out
}
