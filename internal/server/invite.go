package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
)

type createInviteRequest struct {
	ProjectID      string `json:"project_id"`
	CandidateEmail string `json:"candidate_email"`
}

// CreateInvite returns the raw token once. Only its hash is stored.
func (s *Server) CreateInvite(c *gin.Context) {
	principal, _ := principalFromContext(c)

	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	projectID, err := pathID(req.ProjectID, "project_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.inviteSvc.CreateInvite(c.Request.Context(), invitedomain.CreateInviteRequest{
		CompanyID:      principal.CompanyID,
		ProjectID:      projectID,
		CandidateEmail: req.CandidateEmail,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetInvite(c *gin.Context) {
	principal, _ := principalFromContext(c)
	inviteID, err := pathID(c.Param("id"), "invite_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invite, err := s.inviteSvc.Get(c.Request.Context(), principal.CompanyID, inviteID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invite})
}

func (s *Server) GetInviteCandidate(c *gin.Context) {
	principal, _ := principalFromContext(c)
	inviteID, err := pathID(c.Param("id"), "invite_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	candidate, err := s.stats.GetCandidate(c.Request.Context(), principal.CompanyID, inviteID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": candidate})
}

// GetInviteResult returns the stored submission, raw answers included.
func (s *Server) GetInviteResult(c *gin.Context) {
	principal, _ := principalFromContext(c)
	inviteID, err := pathID(c.Param("id"), "invite_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.assessmentSvc.GetResult(c.Request.Context(), principal.CompanyID, inviteID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
