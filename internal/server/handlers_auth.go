package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	authdomain "github.com/equipqr/equipqr/internal/auth/domain"
)

const sessionCookieMaxAge = 30 * 24 * 60 * 60

func (s *Server) handleRegister(c *gin.Context) {
	var req authdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := s.auth.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req authdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	sess, user, err := s.auth.Login(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.SetCookie(sessionCookie, sess.Token, sessionCookieMaxAge, "/", "", s.cfg.AuthCookieSecure, true)
	c.JSON(http.StatusOK, gin.H{
		"token": sess.Token,
		"user":  user,
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.auth.Logout(c.Request.Context(), currentToken(c)); err != nil {
		abortWithError(c, err)
		return
	}
	if snap := currentSnapshot(c); snap != nil {
		s.sessions.Invalidate(snap.UserID)
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", s.cfg.AuthCookieSecure, true)
	c.Status(http.StatusNoContent)
}

// handleMe returns the caller's session snapshot: identity, the
// current organization and every membership.
func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, currentSnapshot(c))
}

func (s *Server) handleSwitchOrg(c *gin.Context) {
	var req struct {
		OrgID string `json:"org_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	orgID, err := snowflake.ParseString(req.OrgID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_org_id"})
		return
	}

	snap, err := s.sessions.SwitchOrganization(c.Request.Context(), currentToken(c), orgID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// pathID parses a snowflake id out of a path parameter.
func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return id, true
}
