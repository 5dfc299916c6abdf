package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/smallbiznis/assessly/internal/analytics/domain"
)

func (s *Server) GetAnalytics(c *gin.Context) {
	principal, _ := principalFromContext(c)

	var query struct {
		From   string `form:"from"`
		To     string `form:"to"`
		Detail string `form:"detail"`
		Top    string `form:"top"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}
	detail, err := parseOptionalBool(query.Detail)
	if err != nil {
		AbortWithError(c, newValidationError("detail", "invalid_detail", "invalid detail"))
		return
	}
	top, err := parseOptionalInt(query.Top)
	if err != nil {
		AbortWithError(c, newValidationError("top", "invalid_top", "invalid top"))
		return
	}

	report, err := s.analyticsSvc.GetAnalytics(c.Request.Context(), analyticsdomain.Request{
		CompanyID:     principal.CompanyID,
		From:          from,
		To:            to,
		IncludeDetail: detail,
		TopN:          top,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}
