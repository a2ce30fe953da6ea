package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "geoincra-portal/internal/common/errors"
	apihttp "geoincra-portal/internal/common/http"
)

type errorResponse struct {
	Code     apperrors.ErrorCode    `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeSessionNotFound, apperrors.ErrCodeUnknownWizard, apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInvalidTransition:
		return http.StatusConflict
	case apperrors.ErrCodeSerializationFailed, apperrors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodePreconditionFailed, apperrors.ErrCodeContractViolation:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodePersistenceFailed, apperrors.ErrCodeBackendUnavailable, apperrors.ErrCodeCredentialMissing:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	stdErr := apperrors.AsStandardError(err)
	status := statusFor(stdErr.Code)
	if stdErr.Code == apperrors.ErrCodeSubmissionRejected {
		// the backend's own 4xx is passed through
		if backend, ok := stdErr.Metadata["status"].(int); ok && backend >= 400 && backend < 500 {
			status = backend
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"code":  stdErr.Code,
			"route": c.FullPath(),
			"error": stdErr,
		})
	}
	c.JSON(status, errorResponse{
		Code:     stdErr.Code,
		Message:  stdErr.Message,
		Details:  stdErr.Details,
		Metadata: stdErr.Metadata,
	})
}

// writeBackendError reports a failed portal call: 4xx answers keep their
// status and detail, everything else is a 503.
func (s *Server) writeBackendError(c *gin.Context, err error) {
	var apiErr *apihttp.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ClientError() {
			s.writeError(c, apperrors.NewSubmissionRejectedError(apiErr.StatusCode, apiErr.Message))
			return
		}
		s.writeError(c, apperrors.NewBackendUnavailableError("portal", err))
		return
	}
	s.writeError(c, err)
}
