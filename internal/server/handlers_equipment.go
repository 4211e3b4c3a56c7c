package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	eqdomain "github.com/equipqr/equipqr/internal/equipment/domain"
)

func (s *Server) handleCreateEquipment(c *gin.Context) {
	var req eqdomain.CreateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	snap := currentSnapshot(c)
	req.OrgID = snap.CurrentOrgID
	req.ActorID = snap.UserID

	eq, err := s.equip.Create(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, eq)
}

func (s *Server) handleListEquipment(c *gin.Context) {
	snap := currentSnapshot(c)
	list, err := s.equip.ListForUser(c.Request.Context(), snap.CurrentOrgID, snap.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"equipment": list})
}

func (s *Server) handleGetEquipment(c *gin.Context) {
	equipmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	eq, err := s.equip.Get(c.Request.Context(), currentSnapshot(c).UserID, equipmentID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, eq)
}

// handleGetEquipmentByQR resolves a scanned QR code to its asset.
func (s *Server) handleGetEquipmentByQR(c *gin.Context) {
	eq, err := s.equip.GetByQRKey(c.Request.Context(), currentSnapshot(c).UserID, c.Param("key"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, eq)
}

func (s *Server) handleUpdateEquipment(c *gin.Context) {
	equipmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req eqdomain.UpdateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	req.ID = equipmentID
	req.ActorID = currentSnapshot(c).UserID

	eq, err := s.equip.Update(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, eq)
}

func (s *Server) handleAssignEquipmentTeam(c *gin.Context) {
	equipmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		TeamID *string `json:"team_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	var teamID *snowflake.ID
	if req.TeamID != nil {
		id, err := snowflake.ParseString(*req.TeamID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_team_id"})
			return
		}
		teamID = &id
	}

	if err := s.equip.AssignToTeam(c.Request.Context(), currentSnapshot(c).UserID, equipmentID, teamID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
