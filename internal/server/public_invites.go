package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/assessly/internal/observability/logger"
	"go.uber.org/zap"
)

const rateLimitReasonClientRate = "client-rate"

// InviteAccessRateLimit throttles token lookups per client address.
func (s *Server) InviteAccessRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.inviteLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := c.FullPath()
		result, err := s.inviteLimiter.Allow(ctx, c.ClientIP())
		if err != nil {
			obslogger.FromContext(ctx).Warn("invite access rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if !result.Allowed {
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, rateLimitReasonClientRate)
			retryAfter := int(result.RetryAfter.Round(time.Second) / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "too many requests",
			}})
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}

// ValidateInvite is read-only. Unknown and unusable tokens answer valid=false.
func (s *Server) ValidateInvite(c *gin.Context) {
	resp, err := s.inviteSvc.Validate(c.Request.Context(), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) OpenInvite(c *gin.Context) {
	resp, err := s.inviteSvc.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type submitResultRequest struct {
	Scores     map[string]float64 `json:"scores"`
	RawAnswers json.RawMessage    `json:"raw_answers"`
}

type submitResultResponse struct {
	ResultID    string    `json:"result_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (s *Server) SubmitResult(c *gin.Context) {
	var req submitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.assessmentSvc.SubmitResult(c.Request.Context(), c.Param("token"), req.Scores, req.RawAnswers)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": submitResultResponse{
		ResultID:    result.ID.String(),
		SubmittedAt: result.SubmittedAt,
	}})
}
