package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	wodomain "github.com/equipqr/equipqr/internal/workorder/domain"
)

func (s *Server) handleCreateWorkOrder(c *gin.Context) {
	var req wodomain.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	req.ActorID = currentSnapshot(c).UserID

	wo, err := s.orders.Create(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wo)
}

func (s *Server) handleGetWorkOrder(c *gin.Context) {
	workOrderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	wo, err := s.orders.Get(c.Request.Context(), currentSnapshot(c).UserID, workOrderID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

func (s *Server) handleListWorkOrders(c *gin.Context) {
	equipmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := s.orders.ListByEquipment(c.Request.Context(), currentSnapshot(c).UserID, equipmentID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"work_orders": list})
}

func (s *Server) handleChangeWorkOrderStatus(c *gin.Context) {
	workOrderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req wodomain.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	req.WorkOrderID = workOrderID
	req.ActorID = currentSnapshot(c).UserID

	wo, err := s.orders.ChangeStatus(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

func (s *Server) handleAssignWorkOrder(c *gin.Context) {
	workOrderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		AssigneeID string `json:"assignee_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	assigneeID, err := snowflake.ParseString(req.AssigneeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_assignee_id"})
		return
	}

	wo, err := s.orders.Assign(c.Request.Context(), workOrderID, currentSnapshot(c).UserID, assigneeID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}
