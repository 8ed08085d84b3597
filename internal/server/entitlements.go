package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/webloom/entitled/internal/entitlement/domain"
	"github.com/webloom/entitled/internal/plan"
)

type checkEntitlementRequest struct {
	AccountID string `json:"account_id"`
	Action    string `json:"action"`
	Feature   string `json:"feature,omitempty"`
}

func (s *Server) CheckEntitlement(c *gin.Context) {
	var req checkEntitlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	decision, err := s.entitlementSvc.CanPerform(c.Request.Context(), req.AccountID, entitlementdomain.Action{
		Kind:    entitlementdomain.ActionKind(req.Action),
		Feature: plan.FeatureFlag(req.Feature),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}
