package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) CreateProject(c *gin.Context) {
	principal, _ := principalFromContext(c)

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	project, err := s.projectSvc.Create(c.Request.Context(), projectdomain.CreateRequest{
		CompanyID:   principal.CompanyID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": project})
}

func (s *Server) ListProjects(c *gin.Context) {
	principal, _ := principalFromContext(c)

	includeArchived, err := parseOptionalBool(c.Query("include_archived"))
	if err != nil {
		AbortWithError(c, newValidationError("include_archived", "invalid_include_archived", "invalid include_archived"))
		return
	}

	projects, err := s.projectSvc.List(c.Request.Context(), projectdomain.ListRequest{
		CompanyID:       principal.CompanyID,
		IncludeArchived: includeArchived,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": projects})
}

func (s *Server) GetProject(c *gin.Context) {
	principal, _ := principalFromContext(c)
	projectID, err := pathID(c.Param("id"), "project_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	project, err := s.projectSvc.Get(c.Request.Context(), principal.CompanyID, projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": project})
}

func (s *Server) ArchiveProject(c *gin.Context) {
	principal, _ := principalFromContext(c)
	projectID, err := pathID(c.Param("id"), "project_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	project, err := s.projectSvc.Archive(c.Request.Context(), principal.CompanyID, projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": project})
}

func (s *Server) ListProjectCandidates(c *gin.Context) {
	principal, _ := principalFromContext(c)
	projectID, err := pathID(c.Param("id"), "project_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	candidates, err := s.stats.GetProjectCandidates(c.Request.Context(), principal.CompanyID, projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": candidates})
}

func (s *Server) ListProjectInvites(c *gin.Context) {
	principal, _ := principalFromContext(c)
	projectID, err := pathID(c.Param("id"), "project_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invites, err := s.inviteSvc.ListByProject(c.Request.Context(), principal.CompanyID, projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invites})
}
