package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/webloom/entitled/internal/audit/domain"
	"github.com/webloom/entitled/pkg/db/pagination"
)

type listAuditLogsQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int32  `form:"page_size"`
	AccountID string `form:"account_id"`
	Action    string `form:"action"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		AccountID: strings.TrimSpace(query.AccountID),
		Action:    strings.TrimSpace(query.Action),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}
