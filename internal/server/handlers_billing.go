package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/equipqr/equipqr/internal/billing/domain"
	"github.com/equipqr/equipqr/internal/checkout"
)

func (s *Server) handleBillingSummary(c *gin.Context) {
	snap := currentSnapshot(c)
	summary, err := s.billing.Summarize(c.Request.Context(), snap.CurrentOrgID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":  summary,
		"org_role": snap.CurrentRole,
	})
}

func (s *Server) handleListExemptions(c *gin.Context) {
	list, err := s.billing.ListExemptions(c.Request.Context(), currentSnapshot(c).CurrentOrgID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exemptions": list})
}

func (s *Server) handleGrantExemption(c *gin.Context) {
	var req billingdomain.GrantExemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	snap := currentSnapshot(c)
	req.OrgID = snap.CurrentOrgID

	ex, err := s.billing.GrantExemption(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	_ = s.audit.Record(c.Request.Context(), snap.CurrentOrgID, "exemption_granted", snap.UserID.String(), map[string]any{
		"exemption_id": ex.ID.String(),
		"scope":        ex.Scope,
		"feature_key":  ex.FeatureKey,
	})
	c.JSON(http.StatusCreated, ex)
}

func (s *Server) handleRevokeExemption(c *gin.Context) {
	exemptionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	snap := currentSnapshot(c)

	if err := s.billing.RevokeExemption(c.Request.Context(), exemptionID); err != nil {
		abortWithError(c, err)
		return
	}
	_ = s.audit.Record(c.Request.Context(), snap.CurrentOrgID, "exemption_revoked", snap.UserID.String(), map[string]any{
		"exemption_id": exemptionID.String(),
	})
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListAuditLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := s.audit.ListByOrg(c.Request.Context(), currentSnapshot(c).CurrentOrgID, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleCreateCheckoutSession(c *gin.Context) {
	var req checkout.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	snap := currentSnapshot(c)
	req.OrgID = snap.CurrentOrgID
	req.ActorID = snap.UserID

	sess, err := s.checkout.CreateSession(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (s *Server) handleResolveFeature(c *gin.Context) {
	decision, err := s.access.Resolve(c.Request.Context(), currentSnapshot(c).CurrentOrgID, c.Param("key"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (s *Server) handleResolveAllFeatures(c *gin.Context) {
	decisions, err := s.access.ResolveAll(c.Request.Context(), currentSnapshot(c).CurrentOrgID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"features": decisions})
}

// handleStripeWebhook verifies and applies a billing provider event.
// Processing failures return 500 so the provider retries the delivery.
func (s *Server) handleStripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := s.webhooks.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"event_id": result.EventID,
		"outcome":  result.Outcome,
	})
}
