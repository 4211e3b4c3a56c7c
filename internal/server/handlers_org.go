package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
)

func (s *Server) handleCreateOrganization(c *gin.Context) {
	var req orgdomain.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	req.OwnerID = currentSnapshot(c).UserID

	org, err := s.orgs.Create(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.sessions.Invalidate(req.OwnerID)
	c.JSON(http.StatusCreated, org)
}

func (s *Server) handleListOrganizations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"organizations": currentSnapshot(c).Organizations})
}

func (s *Server) handleListMembers(c *gin.Context) {
	snap := currentSnapshot(c)
	members, err := s.orgs.ListMembers(c.Request.Context(), snap.CurrentOrgID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) handleInviteMembers(c *gin.Context) {
	var req orgdomain.InviteMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	snap := currentSnapshot(c)
	req.OrgID = snap.CurrentOrgID
	req.ActorID = snap.UserID

	invites, err := s.orgs.InviteMembers(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invites": invites})
}

func (s *Server) handleAcceptInvite(c *gin.Context) {
	inviteID, ok := pathID(c, "id")
	if !ok {
		return
	}
	snap := currentSnapshot(c)

	user, err := s.auth.GetUser(c.Request.Context(), snap.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	member, err := s.orgs.AcceptInvite(c.Request.Context(), inviteID, snap.UserID, user.Email)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.sessions.Invalidate(snap.UserID)
	c.JSON(http.StatusOK, member)
}

func (s *Server) handleChangeMemberRole(c *gin.Context) {
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	var req orgdomain.ChangeMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	snap := currentSnapshot(c)
	req.OrgID = snap.CurrentOrgID
	req.ActorID = snap.UserID
	req.TargetUserID = targetID

	if err := s.orgs.ChangeMemberRole(c.Request.Context(), req); err != nil {
		abortWithError(c, err)
		return
	}
	s.sessions.Invalidate(targetID)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	snap := currentSnapshot(c)

	if err := s.orgs.RemoveMember(c.Request.Context(), snap.CurrentOrgID, snap.UserID, targetID); err != nil {
		abortWithError(c, err)
		return
	}
	s.sessions.Invalidate(targetID)
	c.Status(http.StatusNoContent)
}
