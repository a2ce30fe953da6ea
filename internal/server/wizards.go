package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "geoincra-portal/internal/common/errors"
	"geoincra-portal/internal/session"
	"geoincra-portal/internal/wizard"
)

type createRequest struct {
	TargetID string       `json:"targetId"`
	Draft    wizard.Draft `json:"draft"`
}

type targetRequest struct {
	TargetID string `json:"targetId"`
}

type sessionResponse struct {
	ID string `json:"id"`
	wizard.Snapshot
}

type actionResponse struct {
	sessionResponse
	Validation wizard.ValidationResult  `json:"validation,omitempty"`
	Submission *wizard.SubmissionResult `json:"submission,omitempty"`
	Stale      bool                     `json:"stale,omitempty"`
}

func (s *Server) handleCreate(c *gin.Context) {
	var req createRequest
	if err := bindJSON(c, &req, true); err != nil {
		s.writeError(c, err)
		return
	}

	sess, err := s.sessions.Create(c.Request.Context(), c.Param("wizard"), strings.TrimSpace(req.TargetID))
	if err != nil && sess == nil {
		s.writeError(c, err)
		return
	}
	if len(req.Draft) > 0 {
		if err := sess.Controller.Merge(req.Draft); err != nil {
			s.writeError(c, transitionError(err))
			return
		}
		s.persist(c.Request.Context(), sess)
	}
	c.JSON(http.StatusCreated, view(sess))
}

func (s *Server) handleGet(c *gin.Context) {
	sess, err := s.sessions.Get(c.Request.Context(), c.Param("wizard"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view(sess))
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.sessions.Delete(c.Request.Context(), c.Param("wizard")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDraft(c *gin.Context) {
	sess, err := s.sessions.Get(c.Request.Context(), c.Param("wizard"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	var partial wizard.Draft
	if err := bindJSON(c, &partial, false); err != nil {
		s.writeError(c, err)
		return
	}
	if err := sess.Controller.Merge(partial); err != nil {
		s.writeError(c, transitionError(err))
		return
	}
	s.persist(c.Request.Context(), sess)
	c.JSON(http.StatusOK, view(sess))
}

func (s *Server) handleTarget(c *gin.Context) {
	sess, err := s.sessions.Get(c.Request.Context(), c.Param("wizard"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req targetRequest
	if err := bindJSON(c, &req, false); err != nil {
		s.writeError(c, err)
		return
	}
	if err := sess.Controller.SetTarget(strings.TrimSpace(req.TargetID)); err != nil {
		s.writeError(c, transitionError(err))
		return
	}
	s.persist(c.Request.Context(), sess)
	c.JSON(http.StatusOK, view(sess))
}

// handleAction runs next, prev, submit or reset. A step that fails
// validation is answered with 200 and the field errors: the wizard simply
// did not move.
func (s *Server) handleAction(c *gin.Context) {
	ctx := c.Request.Context()
	sess, err := s.sessions.Get(ctx, c.Param("wizard"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	ctl := sess.Controller

	var resp actionResponse
	switch action := c.Param("action"); action {
	case "next":
		res, err := ctl.Next()
		if err != nil {
			s.writeError(c, transitionError(err))
			return
		}
		resp.Validation = res
	case "prev":
		if err := ctl.Prev(); err != nil {
			s.writeError(c, transitionError(err))
			return
		}
	case "submit":
		// a client that goes away only loses the answer; the backend call
		// and its recording run to completion
		ctx = context.WithoutCancel(ctx)
		out, err := ctl.Submit(ctx)
		if err != nil {
			s.writeError(c, transitionError(err))
			return
		}
		resp.Validation = out.Validation
		resp.Submission = out.Result
		resp.Stale = out.Stale
	case "reset":
		ctl.Reset(nil)
	default:
		s.writeError(c, apperrors.NewInvalidTransitionError(fmt.Sprintf("unknown action %q", action)))
		return
	}

	s.persist(ctx, sess)
	resp.sessionResponse = view(sess)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleMunicipios(c *gin.Context) {
	state := strings.TrimSpace(c.Query("uf"))
	if state == "" {
		state = s.defaultState
	}
	c.JSON(http.StatusOK, s.municipios.Search(c.Request.Context(), c.Query("search"), state))
}

// persist failures are logged by the manager; the in-memory session stays
// authoritative.
func (s *Server) persist(ctx context.Context, sess *session.Session) {
	_ = s.sessions.Persist(ctx, sess)
}

// bindJSON decodes the request body into v. An empty body is accepted when
// optional is set.
func bindJSON(c *gin.Context, v interface{}, optional bool) error {
	if err := c.ShouldBindJSON(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.NewSerializationFailedError(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

func view(sess *session.Session) sessionResponse {
	return sessionResponse{ID: sess.ID, Snapshot: sess.Controller.Snapshot()}
}

func transitionError(err error) error {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return apperrors.NewInvalidTransitionError(err.Error())
}
