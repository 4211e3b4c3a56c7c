package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	teamdomain "github.com/equipqr/equipqr/internal/team/domain"
)

func (s *Server) handleCreateTeam(c *gin.Context) {
	var req teamdomain.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	snap := currentSnapshot(c)
	req.OrgID = snap.CurrentOrgID
	req.ActorID = snap.UserID

	team, err := s.teams.Create(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (s *Server) handleListTeams(c *gin.Context) {
	teams, err := s.teams.ListByOrg(c.Request.Context(), currentSnapshot(c).CurrentOrgID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

func (s *Server) handleGetTeam(c *gin.Context) {
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}
	team, err := s.teams.GetByID(c.Request.Context(), teamID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if team.OrgID != currentSnapshot(c).CurrentOrgID {
		abortWithError(c, teamdomain.ErrTeamNotFound)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (s *Server) handleListTeamMembers(c *gin.Context) {
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}
	members, err := s.teams.ListMembers(c.Request.Context(), teamID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) handleAddTeamMember(c *gin.Context) {
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req teamdomain.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	req.TeamID = teamID
	req.ActorID = currentSnapshot(c).UserID

	member, err := s.teams.AddMember(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (s *Server) handleChangeTeamRole(c *gin.Context) {
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	var req teamdomain.ChangeMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	req.TeamID = teamID
	req.ActorID = currentSnapshot(c).UserID
	req.TargetUserID = targetID

	if err := s.teams.ChangeMemberRole(c.Request.Context(), req); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRemoveTeamMember(c *gin.Context) {
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	if err := s.teams.RemoveMember(c.Request.Context(), teamID, currentSnapshot(c).UserID, targetID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
