package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"geoincra-portal/internal/automation"
	apperrors "geoincra-portal/internal/common/errors"
	"geoincra-portal/internal/documents"
	"geoincra-portal/internal/models"
	"geoincra-portal/internal/proposal"
	"geoincra-portal/internal/requirements"
	"geoincra-portal/internal/timeline"
)

// Portal groups the backend clients the server relays for the project
// screens around the wizards. Nil clients leave their routes unregistered.
type Portal struct {
	History      *proposal.History
	Requirements *requirements.Client
	Timeline     *timeline.Client
	Documents    *documents.Client
	Automations  *automation.Client
}

func (s *Server) portalRoutes(api, uploads *gin.RouterGroup) {
	p := s.portal
	if p == nil {
		return
	}
	if p.History != nil {
		api.GET("/projects/:project/proposals", s.handleProposalHistory)
	}
	if p.Requirements != nil {
		api.GET("/templates", s.handleTemplates)
		api.GET("/projects/:project/requirements", s.handleRequirements)
		api.GET("/projects/:project/requirements/:type", s.handleRequirement)
		api.PUT("/projects/:project/requirements/:type", s.handleUpsertRequirement)
		api.DELETE("/projects/:project/requirements/:type", s.handleDeleteRequirement)
		api.GET("/projects/:project/requirements/:type/document", s.handleGenerateRequirement)
	}
	if p.Timeline != nil {
		api.POST("/projects/:project/timeline", s.handleAddStage)
		api.POST("/projects/:project/timeline/progress", s.handleStageProgress)
		api.DELETE("/timeline/:entry", s.handleDeleteStage)
	}
	if p.Documents != nil {
		api.GET("/projects/:project/documents", s.handleDocuments)
		api.GET("/documents/:document/file", s.handleDownloadDocument)
		api.DELETE("/documents/:document", s.handleDeleteDocument)
		uploads.POST("/projects/:project/documents", s.handleUploadDocument)
		uploads.POST("/projects/:project/matricula", s.handleUploadMatricula)
	}
	if p.Automations != nil {
		api.POST("/automations/onr", s.handleStartONR)
		api.POST("/automations/ri-digital", s.handleStartRIDigital)
		api.GET("/automations/jobs", s.handleAutomationJobs)
		api.GET("/automations/jobs/:job", s.handleAutomationJob)
	}
}

// pathID parses a numeric path segment; anything else cannot name a
// backend record.
func pathID(c *gin.Context, name, resource string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewNotFoundError(resource, raw)
	}
	return id, nil
}

func writeFile(c *gin.Context, data []byte, contentType, filename string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) handleProposalHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.portal.History.List(c.Request.Context(), c.Param("project")))
}

func (s *Server) handleTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, s.portal.Requirements.Templates(c.Request.Context(), c.Query("categoria")))
}

func (s *Server) handleRequirements(c *gin.Context) {
	project, err := pathID(c, "project", "project")
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.portal.Requirements.List(c.Request.Context(), project))
}

func (s *Server) handleRequirement(c *gin.Context) {
	project, err := pathID(c, "project", "project")
	if err != nil {
		s.writeError(c, err)
		return
	}
	reqType := c.Param("type")
	req := s.portal.Requirements.Get(c.Request.Context(), project, reqType)
	if req == nil {
		s.writeError(c, apperrors.NewNotFoundError("requirement", reqType))
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleUpsertRequirement(c *gin.Context) {
	project, err := pathID(c, "project", "project")
	if err != nil {
		s.writeError(c, err)
		return
	}
	var body models.Requirement
	if err := bindJSON(c, &body, false); err != nil {
		s.writeError(c, err)
		return
	}
	body.Type = c.Param("type")

	saved, err := s.portal.Requirements.Upsert(c.Request.Context(), project, body)
	if err != nil {
		s.writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) handleDeleteRequirement(c *gin.Context) {
	project, err := pathID(c, "project", "project")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.portal.Requirements.Delete(c.Request.Context(), project, c.Param("type")); err != nil {
		s.writeBackendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGenerateRequirement(c *gin.Context) {
	project, err := pathID(c, "project", "project")
	if err != nil {
		s.writeError(c, err)
		return
	}
	templateID, err := strconv.ParseInt(c.Query("template_id"), 10, 64)
	if err != nil {
		s.writeError(c, apperrors.NewPreconditionFailedError("template_id is required"))
		return
	}

	reqType := c.Param("type")
	data, contentType, err := s.portal.Requirements.Generate(c.Request.Context(), project, reqType, templateID)
	if err != nil {
		s.writeBackendError(c, err)
		return
	}
	writeFile(c, data, contentType, fmt.Sprintf("requerimento_%s.docx", reqType))
}

type stageRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Progress    *int   `json:"progress,omitempty"`
}

func (s *Server) handleAddStage(c *gin.Context) {
	project, err := pathID(c, "project", "project")
	if err != nil {
		s.writeError(c, err)
		return
	}
	var body stageRequest
	if err := bindJSON(c, &body, false); err != nil {
		s.writeError(c, err)
		return
	}

	entry, err := s.portal.Timeline.AddStage(c.Request.Context(), project, body.Title, body.Description)
	if err != nil {
		s.writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// handleStageProgress records a stage again with the status its progress
// maps to; the backend keeps no update endpoint.
func (s *Server) handleStageProgress(c *gin.Context) {
	project, err := pathID(c, "project", "project")
	if err != nil {
		s.writeError(c, err)
		return
	}
	var body stageRequest
	if err := bindJSON(c, &body, false); err != nil {
		s.writeError(c, err)
		return
	}
	if body.Progress == nil {
		s.writeError(c, apperrors.NewPreconditionFailedError("progress is required"))
		return
	}

	current := models.TimelineEntry{ProjectID: project, Title: body.Title}
	if body.Description != "" {
		current.Description = &body.Description
	}
	entry, err := s.portal.Timeline.UpdateProgress(c.Request.Context(), current, *body.Progress)
	if err != nil {
		s.writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleDeleteStage(c *gin.Context) {
	entry, err := pathID(c, "entry", "timeline entry")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.portal.Timeline.Delete(c.Request.Context(), entry); err != nil {
		s.writeBackendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDocuments(c *gin.Context) {
	project, err := pathID(c, "project", "project")
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.portal.Documents.List(c.Request.Context(), project))
}

func (s *Server) handleDownloadDocument(c *gin.Context) {
	id, err := pathID(c, "document", "document")
	if err != nil {
		s.writeError(c, err)
		return
	}
	data, contentType, err := s.portal.Documents.Download(c.Request.Context(), id)
	if err != nil {
		s.writeBackendError(c, err)
		return
	}
	name := c.Query("name")
	if name == "" {
		name = models.Document{ID: id}.DisplayName()
	}
	writeFile(c, data, contentType, name)
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	id, err := pathID(c, "document", "document")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.portal.Documents.Delete(c.Request.Context(), id); err != nil {
		s.writeBackendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStartONR(c *gin.Context) {
	var body models.ONRQuery
	if err := bindJSON(c, &body, false); err != nil {
		s.writeError(c, err)
		return
	}
	job, err := s.portal.Automations.StartONR(c.Request.Context(), body)
	if err != nil {
		s.writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

type riDigitalRequest struct {
	StartDate string `json:"data_inicio"`
	EndDate   string `json:"data_fim"`
	ProjectID *int64 `json:"project_id"`
}

func (s *Server) handleStartRIDigital(c *gin.Context) {
	var body riDigitalRequest
	if err := bindJSON(c, &body, false); err != nil {
		s.writeError(c, err)
		return
	}
	job, err := s.portal.Automations.StartRIDigital(c.Request.Context(), models.RIDigitalQuery{
		StartDate: body.StartDate,
		EndDate:   body.EndDate,
		ProjectID: body.ProjectID,
	})
	if err != nil {
		s.writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (s *Server) handleAutomationJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.portal.Automations.Jobs(c.Request.Context()))
}

func (s *Server) handleAutomationJob(c *gin.Context) {
	id, err := pathID(c, "job", "automation job")
	if err != nil {
		s.writeError(c, err)
		return
	}
	job := s.portal.Automations.Job(c.Request.Context(), id)
	if job == nil {
		s.writeError(c, apperrors.NewNotFoundError("automation job", c.Param("job")))
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleUploadDocument(c *gin.Context) {
	docType := strings.TrimSpace(c.PostForm("doc_type"))
	if docType == "" {
		docType = strings.TrimSpace(c.Query("doc_type"))
	}
	if docType == "" {
		docType = "matricula"
	}
	s.relayUpload(c, func(project int64, filename string, content io.Reader) (*models.Document, error) {
		return s.portal.Documents.Upload(c.Request.Context(), project, docType, filename, content)
	})
}

func (s *Server) handleUploadMatricula(c *gin.Context) {
	s.relayUpload(c, func(project int64, filename string, content io.Reader) (*models.Document, error) {
		return s.portal.Documents.UploadMatricula(c.Request.Context(), project, filename, content)
	})
}

// relayUpload hands the "file" form field of the request to send.
func (s *Server) relayUpload(c *gin.Context, send func(project int64, filename string, content io.Reader) (*models.Document, error)) {
	project, err := pathID(c, "project", "project")
	if err != nil {
		s.writeError(c, err)
		return
	}
	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		s.writeError(c, apperrors.NewPreconditionFailedError("select a file to upload"))
		return
	}
	if err != nil {
		s.writeError(c, apperrors.NewSerializationFailedError(fmt.Errorf("invalid upload: %w", err)))
		return
	}
	file, err := header.Open()
	if err != nil {
		s.writeError(c, apperrors.NewSerializationFailedError(fmt.Errorf("failed to read upload: %w", err)))
		return
	}
	defer file.Close()

	doc, err := send(project, header.Filename, file)
	if err != nil {
		s.writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}
