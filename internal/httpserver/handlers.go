package httpserver

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/netglobe/internal/model"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime":         time.Since(s.startTime).String(),
		"total_count":    s.reader.TotalCount(),
		"stream_clients": s.hub.Clients(),
	})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.reader.Snapshot())
}

// limitParam reads ?limit=, bounded to [1, upper]. Absent means upper.
func limitParam(c *gin.Context, upper int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return upper, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	if n > upper {
		n = upper
	}
	return n, true
}

func (s *Server) handleEvents(c *gin.Context) {
	events := s.reader.Snapshot().Events
	limit, ok := limitParam(c, max(len(events), 1))
	if !ok {
		return
	}
	if limit < len(events) {
		events = events[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (s *Server) handleThreats(c *gin.Context) {
	threats := s.reader.Snapshot().Threats
	limit, ok := limitParam(c, max(len(threats), 1))
	if !ok {
		return
	}
	if limit < len(threats) {
		threats = threats[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"threats": threats, "count": len(threats)})
}

func (s *Server) handleStats(c *gin.Context) {
	snap := s.reader.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"stats":        snap.Stats,
		"total_count":  snap.TotalCount,
		"generated_at": snap.GeneratedAt,
	})
}

func (s *Server) handleVisuals(c *gin.Context) {
	snap := s.reader.Snapshot()
	c.JSON(http.StatusOK, model.Visuals{Arcs: snap.Arcs, Rings: snap.Rings, Points: snap.Points})
}

func (s *Server) handleVisualsGeoJSON(c *gin.Context) {
	snap := s.reader.Snapshot()
	body, err := VisualsGeoJSON(model.Visuals{Arcs: snap.Arcs, Rings: snap.Rings, Points: snap.Points})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode geojson"})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

func (s *Server) requireQuerier(c *gin.Context) {
	if s.querier == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "window mirror is disabled"})
		return
	}
	c.Next()
}

func (s *Server) handleSchema(c *gin.Context) {
	description := s.querier.GetSchemaDescription()

	tables, err := s.querier.ExecuteQuery(
		"SELECT table_name, column_name, data_type FROM information_schema.columns WHERE table_schema = 'main' AND table_name <> 'schema_migrations' ORDER BY table_name, ordinal_position",
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read schema metadata"})
		return
	}

	schema := make(map[string][]map[string]string)
	for _, row := range tables {
		tableName := fmt.Sprintf("%v", row["table_name"])
		schema[tableName] = append(schema[tableName], map[string]string{
			"column": fmt.Sprintf("%v", row["column_name"]),
			"type":   fmt.Sprintf("%v", row["data_type"]),
		})
	}

	counts, err := s.querier.TableRowCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read table row counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"description": description,
		"tables":      schema,
		"row_counts":  counts,
	})
}

func (s *Server) handleRoutes(c *gin.Context) {
	limit, ok := limitParam(c, 100)
	if !ok {
		return
	}
	if c.Query("limit") == "" {
		limit = 10
	}
	routes, err := s.querier.TopRoutes(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate routes"})
		return
	}
	if routes == nil {
		routes = []model.RouteCount{}
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req struct {
		SQL string `json:"sql" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing sql field"})
		return
	}

	results, err := s.querier.ExecuteQuery(req.SQL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	columns := []string{}
	if len(results) > 0 {
		for col := range results[0] {
			columns = append(columns, col)
		}
		sort.Strings(columns)
	}

	c.JSON(http.StatusOK, gin.H{
		"columns":   columns,
		"rows":      results,
		"row_count": len(results),
	})
}
