package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	usagedomain "github.com/webloom/entitled/internal/usage/domain"
)

func (s *Server) CommitUsage(c *gin.Context) {
	var req usagedomain.CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.usageSvc.Commit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// a denied commit is a regular answer, not an error
	c.JSON(http.StatusOK, result)
}
