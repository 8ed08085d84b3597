package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/webloom/entitled/internal/account/domain"
	"github.com/webloom/entitled/internal/actorcontext"
)

func (s *Server) CreateAccount(c *gin.Context) {
	var req accountdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	account, err := s.accountSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (s *Server) GetAccount(c *gin.Context) {
	account, err := s.accountSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (s *Server) GetAccountCounters(c *gin.Context) {
	counters, err := s.accountSvc.GetCounters(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, counters)
}

type overridePlanRequest struct {
	Plan string `json:"plan"`
}

// OverridePlan is the operator escape hatch; the mutation is attributed to
// the caller via the X-Operator-Id header and audit-logged.
func (s *Server) OverridePlan(c *gin.Context) {
	var req overridePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	operator := strings.TrimSpace(c.GetHeader("X-Operator-Id"))
	if operator == "" {
		operator = "unknown"
	}
	ctx := actorcontext.WithActor(c.Request.Context(), actorcontext.Actor{
		Type: actorcontext.ActorTypeOperator,
		ID:   operator,
	})

	account, err := s.accountSvc.OverridePlan(ctx, c.Param("id"), req.Plan)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}
