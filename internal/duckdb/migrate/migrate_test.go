package migrate

import (
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
)

const latestVersion = 2

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunCreatesWindowSchema(t *testing.T) {
	db := openTestDB(t)
	r := NewRunner(db)

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, table := range []string{"traffic_window", "threat_window", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT table_name FROM information_schema.tables WHERE table_name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("relation %s not found: %v", table, err)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	r := NewRunner(db)

	if err := r.Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	cur, pending, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != latestVersion || pending != 0 {
		t.Errorf("expected version=%d pending=0, got version=%d pending=%d", latestVersion, cur, pending)
	}
}

func TestStatusBeforeRun(t *testing.T) {
	db := openTestDB(t)
	r := NewRunner(db)

	cur, pending, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != 0 || pending != latestVersion {
		t.Errorf("expected version=0 pending=%d, got version=%d pending=%d", latestVersion, cur, pending)
	}
}
