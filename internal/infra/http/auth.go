package http

import (
	"errors"
	"net/http"
	"strings"

	"stationportal/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	principalContextKey = "principal"
	portalContextKey    = "portal"
)

// portalMiddleware derives the request's portal once and stores it on the
// context for the auth gate and the handlers.
func (s *Server) portalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		portal := portalOf(c.Request.Host, c.GetHeader(s.cfg.SubdomainHeader), s.cfg.TunnelDomain)
		c.Set(portalContextKey, portal)
		c.Next()
	}
}

// requireAccess authenticates the identity assertion (if any) and applies
// the portal access decision. Denials render one generic body: the response
// never says whether the email was unknown or the tenant was wrong.
func (s *Server) requireAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		portal := getPortal(c)
		token := s.assertionFrom(c)
		principal, err := s.access.Authorize(c.Request.Context(), token, portal)
		if err != nil {
			writeAccessDenied(c, err)
			c.Abort()
			return
		}
		if principal != nil {
			c.Set(principalContextKey, principal)
		}
		c.Next()
	}
}

// assertionFrom reads the gateway's assertion header, falling back to a
// standard bearer Authorization header.
func (s *Server) assertionFrom(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(s.cfg.AssertionHeader)); token != "" {
		return token
	}
	return extractBearerToken(c.GetHeader("Authorization"))
}

func extractBearerToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return ""
	}
	return strings.TrimSpace(value[len("bearer "):])
}

func getPortal(c *gin.Context) domain.Portal {
	raw, ok := c.Get(portalContextKey)
	if !ok {
		return domain.PublicPortal()
	}
	portal, ok := raw.(domain.Portal)
	if !ok {
		return domain.PublicPortal()
	}
	return portal
}

func getPrincipal(c *gin.Context) (*domain.Principal, bool) {
	raw, ok := c.Get(principalContextKey)
	if !ok {
		return nil, false
	}
	principal, ok := raw.(*domain.Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

// writeAccessDenied collapses every denial cause into the same response so
// tenant existence and account state never leak.
func writeAccessDenied(c *gin.Context, err error) {
	status := http.StatusForbidden
	if err == nil || errors.Is(err, domain.ErrUnauthorized) {
		status = http.StatusUnauthorized
	}
	writeErrorCode(c, status, "ACCESS_DENIED", "access denied")
}
