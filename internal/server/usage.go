package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/telcobill/internal/period"
	usagedomain "github.com/smallbiznis/telcobill/internal/usage/domain"
)

func (s *Server) IngestUsage(c *gin.Context) {
	var req usagedomain.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.usageSvc.Ingest(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListUsage(c *gin.Context) {
	simID := strings.TrimSpace(c.Query("sim_id"))

	var month period.Month
	if raw := strings.TrimSpace(c.Query("month")); raw != "" {
		parsed, err := period.Parse(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		month = parsed
	}

	resp, err := s.usageSvc.List(c.Request.Context(), simID, month)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
