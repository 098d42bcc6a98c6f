package httpapi

import (
	"errors"
	"net/http"

	"github.com/bnema/marketwin/internal/application"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Feature   domain.Feature    `json:"feature,omitempty"`
	Platform  domain.Platform   `json:"platform,omitempty"`
	Remaining *domain.Remaining `json:"remaining,omitempty"`
	Result    map[string]any    `json:"result,omitempty"`
}

// badRequest marks an error caused by the request itself, such as a plan or
// feature name that does not exist.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }

func (e badRequest) Unwrap() error { return e.err }

func invalidInput(err error) error { return badRequest{err: err} }

// handleError renders every error a handler returns.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := s.describe(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err.Error())
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.log.Error("write error response", "error", err.Error())
	}
}

func (s *Server) describe(err error) (int, errorResponse) {
	var (
		denial     *domain.Denial
		accounting *application.AccountingError
		validation validator.ValidationErrors
		httpErr    *echo.HTTPError
		bad        badRequest
	)

	switch {
	case errors.As(err, &denial):
		remaining := denial.Remaining
		return http.StatusForbidden, errorResponse{
			Error:     string(denial.Code),
			Message:   denial.Error(),
			Feature:   denial.Feature,
			Platform:  denial.Platform,
			Remaining: &remaining,
		}
	case errors.As(err, &accounting):
		return http.StatusInternalServerError, errorResponse{
			Error:   "ACCOUNTING_FAILED",
			Message: "the action completed but its usage could not be recorded",
			Feature: accounting.Feature,
			Result:  accounting.Result.Output,
		}
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Error: "validation_error", Message: validation.Error()}
	case errors.As(err, &bad):
		return http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: bad.Error()}
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, errorResponse{Error: "not_found", Message: "account not found"}
	case errors.Is(err, domain.ErrAccountExists):
		return http.StatusConflict, errorResponse{Error: "conflict", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidContent),
		errors.Is(err, domain.ErrUnsupportedPlatform),
		errors.Is(err, domain.ErrInvalidCredential),
		errors.Is(err, application.ErrInvalidAccount):
		return http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: err.Error()}
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusConflict, errorResponse{Error: "conflict", Message: "account is busy, retry the request"}
	case errors.As(err, &httpErr):
		message, _ := httpErr.Message.(string)
		if message == "" {
			message = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, errorResponse{Error: "http_error", Message: message}
	default:
		// Unknown plan or feature names stored on an account land here: the
		// catalog and the data disagree.
		return http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: "an internal error occurred"}
	}
}
