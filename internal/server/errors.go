package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/smallbiznis/assessly/internal/analytics/domain"
	assessmentdomain "github.com/smallbiznis/assessly/internal/assessment/domain"
	"github.com/smallbiznis/assessly/internal/auth"
	"github.com/smallbiznis/assessly/internal/authorization"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	licensedomain "github.com/smallbiznis/assessly/internal/license/domain"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	statsdomain "github.com/smallbiznis/assessly/internal/stats/domain"
	"github.com/smallbiznis/assessly/pkg/db"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

const candidateRouteKey = "candidate_route"

// ErrorHandlingMiddleware renders the last handler error. Routes marked by
// candidateErrors get the candidate mapping instead of the HR one.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		mapper := mapError
		if c.GetBool(candidateRouteKey) {
			mapper = mapCandidateError
		}
		status, payload := mapper(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func candidateErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(candidateRouteKey, true)
		c.Next()
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalPayload()
	}

	if status, payload, ok := mapValidation(err); ok {
		return status, payload
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrNotConfigured),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrNotMember):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case errors.Is(err, licensedomain.ErrQuotaExceeded):
		return http.StatusPaymentRequired, errorPayload{Type: "quota_exceeded", Message: "no license seats remaining"}
	case errors.Is(err, projectdomain.ErrProjectLimitReached):
		return http.StatusPaymentRequired, errorPayload{Type: "project_limit_reached", Message: "project limit reached"}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, invitedomain.ErrInviteGone):
		return http.StatusGone, errorPayload{Type: "gone", Message: "invite is no longer active"}
	case errors.Is(err, assessmentdomain.ErrAlreadySubmitted):
		return http.StatusConflict, errorPayload{Type: "already_submitted", Message: "this assessment was already completed"}
	case errors.Is(err, companydomain.ErrMemberExists):
		return http.StatusConflict, errorPayload{Type: "member_exists", Message: "user already belongs to a company"}
	case errors.Is(err, projectdomain.ErrProjectArchived):
		return http.StatusConflict, errorPayload{Type: "project_archived", Message: "project is archived"}
	case isUnavailableError(err):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "service unavailable"}
	default:
		return http.StatusInternalServerError, internalPayload()
	}
}

// mapCandidateError never tells a candidate whether a token exists, only that it cannot be used.
func mapCandidateError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalPayload()
	}

	if status, payload, ok := mapValidation(err); ok {
		return status, payload
	}

	switch {
	case errors.Is(err, invitedomain.ErrInviteNotFound),
		errors.Is(err, invitedomain.ErrInviteGone),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{Type: "invite_invalid", Message: "invite invalid or expired"}
	case errors.Is(err, assessmentdomain.ErrAlreadySubmitted):
		return http.StatusConflict, errorPayload{Type: "already_submitted", Message: "this assessment was already completed"}
	case isUnavailableError(err):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "service unavailable"}
	default:
		return http.StatusInternalServerError, internalPayload()
	}
}

func internalPayload() errorPayload {
	return errorPayload{Type: "internal_error", Message: "internal server error"}
}

func mapValidation(err error) (int, errorPayload, bool) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}, true
	}
	if !isValidationError(err) {
		return 0, errorPayload{}, false
	}
	code := validationErrorCode(err)
	return http.StatusBadRequest, errorPayload{
		Type:    "validation_error",
		Message: "validation error",
		Errors: []ValidationError{
			{
				Field:   validationErrorField(code),
				Code:    code,
				Message: validationErrorMessage(code),
			},
		},
	}, true
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	companydomain.ErrInvalidName,
	companydomain.ErrInvalidLicenseCount,
	companydomain.ErrInvalidMaxProjects,
	companydomain.ErrInvalidUserID,
	companydomain.ErrInvalidRole,
	companydomain.ErrInvalidReason,
	projectdomain.ErrInvalidName,
	projectdomain.ErrInvalidCompany,
	invitedomain.ErrInvalidEmail,
	invitedomain.ErrInvalidInvite,
	assessmentdomain.ErrInvalidScores,
	assessmentdomain.ErrInvalidAnswers,
	analyticsdomain.ErrInvalidRange,
	analyticsdomain.ErrInvalidTopN,
}

func isValidationError(err error) bool {
	_, ok := matchSentinel(err, validationSentinels)
	return ok
}

func matchSentinel(err error, sentinels []error) (error, bool) {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel, true
		}
	}
	return nil, false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, companydomain.ErrCompanyNotFound),
		errors.Is(err, companydomain.ErrMemberNotFound),
		errors.Is(err, projectdomain.ErrProjectNotFound),
		errors.Is(err, invitedomain.ErrInviteNotFound),
		errors.Is(err, statsdomain.ErrCandidateNotFound),
		errors.Is(err, assessmentdomain.ErrResultNotFound):
		return true
	default:
		return false
	}
}

func isUnavailableError(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, db.ErrUnavailable) ||
		errors.Is(err, invitedomain.ErrTransitionLost)
}

func validationErrorCode(err error) string {
	if sentinel, ok := matchSentinel(err, validationSentinels); ok {
		return sentinel.Error()
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog feeds the request logger a stable type and code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if sentinel, ok := matchSentinel(err, validationSentinels); ok {
		code = sentinel.Error()
	}
	return payload.Type, code
}
