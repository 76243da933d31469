package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/estufa-iot/services/api/query"
	"github.com/02loveslollipop/estufa-iot/services/api/store"
)

// handleQuery flattens stored readings with optional filters.
// GET /api/query?sensorId=&type=&from=&to=&limit=
func (s *Server) handleQuery(c *gin.Context) {
	filter := query.Filter{
		SensorID: c.Query("sensorId"),
		Type:     c.Query("type"),
		Limit:    s.cfg.QueryDefaultLimit,
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": "invalid limit"})
			return
		}
		filter.Limit = parsed
	}

	if fromStr := c.Query("from"); fromStr != "" {
		t, err := query.ParseTimestamp(fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": "invalid from timestamp"})
			return
		}
		filter.From = &t
	}

	if toStr := c.Query("to"); toStr != "" {
		t, err := query.ParseTimestamp(toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": "invalid to timestamp"})
			return
		}
		filter.To = &t
	}

	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": "to must not be before from"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	res, err := s.deps.Query.Run(ctx, filter)
	if err != nil {
		s.log.Error("query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "query could not be completed"})
		return
	}

	c.JSON(http.StatusOK, res)
}

// handleStats reports corpus totals when the store can compute them.
// GET /api/stats
func (s *Server) handleStats(c *gin.Context) {
	st, ok := s.deps.Store.(store.StatsStore)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"code": "NOT_SUPPORTED", "message": "storage backend does not report statistics"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	stats, err := st.Stats(ctx)
	if err != nil {
		s.log.Error("stats failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "message": "statistics unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}
