package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/invoicedesk/internal/auth/domain"
)

func (s *Server) Login(c *gin.Context) {
	values, err := formValues(c)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	values[authdomain.MetaUserAgent] = c.Request.UserAgent()
	values[authdomain.MetaIPAddress] = c.ClientIP()

	outcome, err := s.loginHandler.Authenticate(c.Request.Context(), values)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if outcome.Message != "" {
		s.recordAudit(c, "user.login_failed", "user", "", map[string]any{"reason": outcome.Message})
		c.JSON(http.StatusUnauthorized, gin.H{"message": outcome.Message})
		return
	}

	if outcome.Session != nil {
		s.sessions.Set(c, outcome.Session.RawToken, outcome.Session.ExpiresAt)
		s.recordAudit(c, "user.login", "user", outcome.Session.Identity.UserID, nil)
	}
	c.Redirect(http.StatusSeeOther, outcome.Redirect)
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.authsvc.SignOut(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": identity})
}
