package model

// SnapshotReader provides read-only access to the live pipeline state.
type SnapshotReader interface {
	Snapshot() Snapshot
	TotalCount() int64
}

// SchemaQuerier provides schema introspection and arbitrary read-only queries.
type SchemaQuerier interface {
	ExecuteQuery(query string) ([]map[string]interface{}, error)
	GetSchemaDescription() string
	TableRowCounts() (map[string]int64, error)
}

// WindowWriter receives the current rolling window after every change.
type WindowWriter interface {
	ReplaceWindow(events []TrafficEvent) error
}

// ReadAPI is the unified read contract for read surfaces (HTTP and socket RPC).
type ReadAPI interface {
	SnapshotReader
}

// RouteQuerier aggregates the mirrored window by route.
type RouteQuerier interface {
	TopRoutes(limit int) ([]RouteCount, error)
}

// WindowQuerier is the full query surface over the mirrored window.
type WindowQuerier interface {
	SchemaQuerier
	RouteQuerier
}
