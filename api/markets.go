package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/Aidin1998/botcontrol/common/apiutil"
	"github.com/Aidin1998/botcontrol/internal/audit"
	"github.com/Aidin1998/botcontrol/internal/markets"
	"github.com/gin-gonic/gin"
)

type monitoringRequest struct {
	Monitored *bool `json:"monitored"`
}

func (s *Server) listMarkets(c *gin.Context) {
	q := markets.ParseListQuery(
		c.Query("page"),
		c.Query("limit"),
		c.Query("search"),
		c.Query("status"),
		c.Query("sortBy"),
		c.Query("sortOrder"),
	)

	page, err := s.markets.List(c.Request.Context(), q)
	if err != nil {
		s.internalError(c, "list_markets", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) topMarkets(c *gin.Context) {
	limit := markets.ClampLimit(c.Query("limit"), markets.DefaultTopSize, markets.MaxTopSize)
	out, err := s.markets.Top(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, "top_markets", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) monitoredMarkets(c *gin.Context) {
	limit := markets.ClampLimit(c.Query("limit"), markets.DefaultPageSize, markets.MaxPageSize)
	out, err := s.markets.Monitored(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, "monitored_markets", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) marketStats(c *gin.Context) {
	stats, err := s.markets.Stats(c.Request.Context())
	if err != nil {
		s.internalError(c, "market_stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// setMonitoring sets the flag from {"monitored": bool}; an empty body toggles it
func (s *Server) setMonitoring(c *gin.Context) {
	var req monitoringRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		apiutil.WriteErrorResponse(c, http.StatusBadRequest, "Invalid request body", "monitored must be a boolean", nil)
		return
	}

	id := c.Param("id")
	market, err := s.markets.SetMonitoring(c.Request.Context(), id, req.Monitored)
	switch {
	case err == nil:
		s.auditLog(c, audit.ActionMonitoring, id, "success", map[string]interface{}{"monitored": market.Monitored})
		c.JSON(http.StatusOK, market)
	case errors.Is(err, markets.ErrMarketNotFound):
		apiutil.WriteErrorResponse(c, http.StatusNotFound, "Market not found", "", nil)
	default:
		s.internalError(c, "set_monitoring", err)
	}
}
