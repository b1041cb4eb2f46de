package duckdb

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// MaxQueryRows caps rows returned by ExecuteQuery.
const MaxQueryRows = 1000

// dangerousKeywordPattern matches write and side-effect keywords at word
// boundaries, so "RESET" does not match "SET".
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET|READ_CSV|READ_PARQUET|READ_JSON|READ_TEXT|GLOB)\b`,
)

// blockCommentPattern matches C-style block comments (/* ... */).
var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// stripSQLComments removes -- line comments and /* */ block comments from a query.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var result strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		result.WriteString(line)
		result.WriteByte('\n')
	}
	return result.String()
}

// validateReadOnly rejects anything but a single SELECT/WITH statement.
func validateReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("query is empty")
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("query must not contain semicolons")
	}

	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT/WITH queries are allowed")
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return fmt.Errorf("query contains disallowed keyword: %s", strings.ToUpper(match))
	}
	return nil
}

// ExecuteQuery runs a read-only SQL query against the mirrored window and
// returns at most MaxQueryRows rows as maps.
func (s *Store) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	if err := validateReadOnly(query); err != nil {
		return nil, err
	}

	ctx, cancel := s.queryCtx()
	defer cancel()
	release, err := s.acquireRead(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() && len(results) < MaxQueryRows {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			log.Printf("duckdb: scan error (ExecuteQuery): %v", err)
			continue
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// GetSchemaDescription describes the queryable relations.
func (s *Store) GetSchemaDescription() string {
	return `Table 'traffic_window' (the current rolling window, position 0 = newest): ` +
		`id (VARCHAR), created_at (TIMESTAMP, UTC), src_ip (VARCHAR), src_country_code (VARCHAR), ` +
		`src_city (VARCHAR, nullable), src_lat (DOUBLE), src_lng (DOUBLE), dst_ip (VARCHAR), ` +
		`dst_country_code (VARCHAR), dst_city (VARCHAR, nullable), dst_lat (DOUBLE), dst_lng (DOUBLE), ` +
		`protocol (VARCHAR), port (INTEGER, nullable), packet_size (INTEGER), ` +
		`threat_level (INTEGER 0-5, 0 = benign), threat_type (VARCHAR, nullable), status (VARCHAR), ` +
		`position (INTEGER). View 'threat_window': rows of traffic_window with threat_level > 0.`
}

// TableRowCounts returns the row count for each known relation using a hardcoded allowlist.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := []string{"traffic_window", "threat_window"}
	counts := make(map[string]int64, len(allowed))
	for _, table := range allowed {
		var count int64
		// Relation names are constants, not user input.
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, fmt.Errorf("duckdb: count %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}

// TopRoutes returns the busiest country-to-country routes in the window.
func (s *Store) TopRoutes(limit int) ([]model.RouteCount, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT src_country_code, dst_country_code, COUNT(*) AS events,
		       CAST(SUM(packet_size) AS BIGINT) AS bytes, COUNT(*) FILTER (WHERE threat_level > 0) AS threats
		FROM traffic_window
		GROUP BY src_country_code, dst_country_code
		ORDER BY events DESC, bytes DESC, src_country_code, dst_country_code
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []model.RouteCount
	for rows.Next() {
		var r model.RouteCount
		if err := rows.Scan(&r.Src, &r.Dst, &r.Events, &r.Bytes, &r.Threats); err != nil {
			log.Printf("duckdb: scan error (TopRoutes): %v", err)
			continue
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}
