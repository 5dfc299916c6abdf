package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
)

type provisionCompanyRequest struct {
	Name         string `json:"name"`
	LicenseCount int    `json:"license_count"`
	MaxProjects  int    `json:"max_projects"`
	AdminUserID  string `json:"admin_user_id"`
}

// ProvisionCompany is an operator action. The named admin, or the operator when none is
// named, becomes the company's first admin.
func (s *Server) ProvisionCompany(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req provisionCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	adminUserID := strings.TrimSpace(req.AdminUserID)
	if adminUserID == "" {
		adminUserID = identity.UserID
	}

	resp, err := s.companySvc.Provision(c.Request.Context(), companydomain.ProvisionRequest{
		Name:         strings.TrimSpace(req.Name),
		LicenseCount: req.LicenseCount,
		MaxProjects:  req.MaxProjects,
		AdminUserID:  adminUserID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetCompany(c *gin.Context) {
	principal, _ := principalFromContext(c)
	ctx := c.Request.Context()

	company, err := s.companySvc.Get(ctx, principal.CompanyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	usage, err := s.licenses.Usage(ctx, principal.CompanyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"company": company,
		"usage":   usage,
		"role":    principal.Role,
	}})
}

func (s *Server) ListMembers(c *gin.Context) {
	principal, _ := principalFromContext(c)
	members, err := s.companySvc.ListMembers(c.Request.Context(), principal.CompanyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": members})
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (s *Server) AddMember(c *gin.Context) {
	principal, _ := principalFromContext(c)

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	member, err := s.companySvc.AddMember(c.Request.Context(), companydomain.AddMemberRequest{
		CompanyID: principal.CompanyID,
		UserID:    strings.TrimSpace(req.UserID),
		Role:      companydomain.Role(strings.TrimSpace(req.Role)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": member})
}

type grantLicensesRequest struct {
	Count  int    `json:"count"`
	Reason string `json:"reason"`
}

// GrantLicenses adds purchased seats to a company on an operator's behalf.
func (s *Server) GrantLicenses(c *gin.Context) {
	identity, _ := identityFromContext(c)
	companyID, err := pathID(c.Param("id"), "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req grantLicensesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	company, err := s.companySvc.AddLicenses(c.Request.Context(), companydomain.AddLicensesRequest{
		CompanyID: companyID,
		Count:     req.Count,
		Actor:     identity.UserID,
		Reason:    req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": company})
}
