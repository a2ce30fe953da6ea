// Package documents uploads, lists, downloads and deletes project documents.
package documents

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	apperrors "geoincra-portal/internal/common/errors"
	apihttp "geoincra-portal/internal/common/http"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/models"
)

// DocumentTypes are the doc_type values the backend files uploads under.
var DocumentTypes = []string{
	"matricula",
	"ccir",
	"car",
	"cpf_rg",
	"comprovante_residencia",
	"contrato_particular",
	"planta_memorial",
	"tecnico",
	"outros",
}

func ValidDocumentType(docType string) bool {
	for _, t := range DocumentTypes {
		if t == docType {
			return true
		}
	}
	return false
}

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

// List returns the documents of a project. Errors yield an empty list.
func (c *Client) List(ctx context.Context, projectID int64) []models.Document {
	var out []models.Document
	query := url.Values{"project_id": {strconv.FormatInt(projectID, 10)}}
	if err := c.api.DoJSON(ctx, http.MethodGet, "/api/documents", query, nil, &out); err != nil {
		c.logger.Warn("failed to list documents", map[string]interface{}{
			"projectId": projectID,
			"error":     err.Error(),
		})
		return []models.Document{}
	}
	if out == nil {
		out = []models.Document{}
	}
	return out
}

// Download fetches the file through the dedicated download endpoint.
func (c *Client) Download(ctx context.Context, documentID int64) ([]byte, string, error) {
	return c.api.Download(ctx, "/api/files/documents/"+strconv.FormatInt(documentID, 10), nil)
}

func (c *Client) Delete(ctx context.Context, documentID int64) error {
	return c.api.DoJSON(ctx, http.MethodDelete, "/api/documents/"+strconv.FormatInt(documentID, 10), nil, nil, nil)
}

// Upload sends a file of the given type to a project.
func (c *Client) Upload(ctx context.Context, projectID int64, docType, filename string, content io.Reader) (*models.Document, error) {
	if !ValidDocumentType(docType) {
		return nil, apperrors.NewPreconditionFailedError("unknown document type " + docType)
	}
	query := url.Values{"doc_type": {docType}}
	return c.upload(ctx, "/api/uploads/document", projectID, query, filename, content)
}

// UploadMatricula sends the property registration through its own endpoint.
func (c *Client) UploadMatricula(ctx context.Context, projectID int64, filename string, content io.Reader) (*models.Document, error) {
	return c.upload(ctx, "/api/uploads/matricula", projectID, url.Values{}, filename, content)
}

func (c *Client) upload(ctx context.Context, path string, projectID int64, query url.Values, filename string, content io.Reader) (*models.Document, error) {
	if projectID <= 0 {
		return nil, apperrors.NewPreconditionFailedError("select a project before uploading documents")
	}
	if content == nil || filename == "" {
		return nil, apperrors.NewPreconditionFailedError("select a file to upload")
	}
	query.Set("project_id", strconv.FormatInt(projectID, 10))

	var doc models.Document
	if err := c.api.Upload(ctx, path, query, "file", filename, content, &doc); err != nil {
		c.logger.Warn("failed to upload document", map[string]interface{}{
			"projectId": projectID,
			"path":      path,
			"error":     err.Error(),
		})
		return nil, err
	}
	if doc.ProjectID == 0 {
		doc.ProjectID = projectID
	}
	if doc.OriginalFilename == "" {
		doc.OriginalFilename = filename
	}
	return &doc, nil
}
