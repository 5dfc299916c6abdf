package server

import (
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/assessly/internal/auth"
	"github.com/smallbiznis/assessly/internal/authorization"
	obscontext "github.com/smallbiznis/assessly/internal/observability/context"
)

const (
	contextIdentityKey  = "identity"
	contextPrincipalKey = "principal"
)

// AuthRequired verifies the bearer token and stores the caller identity.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextIdentityKey, identity)
		ctx := obscontext.WithActor(c.Request.Context(), "user", identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CompanyMember resolves the verified caller to their company and role.
func (s *Server) CompanyMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.authzSvc.Resolve(c.Request.Context(), identity.UserID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextPrincipalKey, principal)
		ctx := obscontext.WithCompanyID(c.Request.Context(), principal.CompanyID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), principal, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// authorizePlatform guards actions that sit above any single company.
func (s *Server) authorizePlatform(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.AuthorizePlatform(c.Request.Context(), identity.UserID, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func identityFromContext(c *gin.Context) (auth.Identity, bool) {
	value, ok := c.Get(contextIdentityKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok && identity.UserID != ""
}

func principalFromContext(c *gin.Context) (authorization.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return authorization.Principal{}, false
	}
	principal, ok := value.(authorization.Principal)
	return principal, ok && principal.CompanyID != 0
}
