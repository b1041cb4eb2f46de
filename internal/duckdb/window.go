package duckdb

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

const insertWindowRow = `INSERT INTO traffic_window (
	id, created_at, src_ip, src_country_code, src_city, src_lat, src_lng,
	dst_ip, dst_country_code, dst_city, dst_lat, dst_lng,
	protocol, port, packet_size, threat_level, threat_type, status, position
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ReplaceWindow swaps the mirrored window for events (newest first).
// position 0 is the newest event.
func (s *Store) ReplaceWindow(events []model.TrafficEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("duckdb: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM traffic_window"); err != nil {
		return fmt.Errorf("duckdb: clear window: %w", err)
	}
	stmt, err := tx.Prepare(insertWindowRow)
	if err != nil {
		return fmt.Errorf("duckdb: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range events {
		var port sql.NullInt32
		if e.Port != nil {
			port = sql.NullInt32{Int32: int32(*e.Port), Valid: true}
		}
		if _, err := stmt.Exec(
			e.ID, e.CreatedAt.UTC(), e.SrcIP, e.SrcCountryCode, nullString(e.SrcCity), e.SrcLat, e.SrcLng,
			e.DstIP, e.DstCountryCode, nullString(e.DstCity), e.DstLat, e.DstLng,
			e.Protocol, port, e.PacketSize, e.ThreatLevel, nullString(e.ThreatType), e.Status, i,
		); err != nil {
			return fmt.Errorf("duckdb: insert %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("duckdb: commit: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// DefaultMirrorInterval is how often the mirror writes the latest window.
const DefaultMirrorInterval = time.Second

// Mirror coalesces window updates and writes only the latest one per
// interval, so a slow write never holds up the pipeline's observers.
type Mirror struct {
	writer   model.WindowWriter
	interval time.Duration

	mu      sync.Mutex
	latest  []model.TrafficEvent
	dirty   bool
	done    chan struct{}
	wg      sync.WaitGroup
	stopped atomic.Bool

	failures   atomic.Int64
	lastErrLog atomic.Int64 // unix timestamp of last failure log
}

// NewMirror starts a background writer. interval <= 0 selects DefaultMirrorInterval.
func NewMirror(writer model.WindowWriter, interval time.Duration) *Mirror {
	if interval <= 0 {
		interval = DefaultMirrorInterval
	}
	m := &Mirror{
		writer:   writer,
		interval: interval,
		done:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.loop()
	return m
}

// Offer records the newest window. It never blocks on the database.
// The slice must not be modified afterwards.
func (m *Mirror) Offer(events []model.TrafficEvent) {
	m.mu.Lock()
	m.latest = events
	m.dirty = true
	m.mu.Unlock()
}

// Observe adapts Offer to a snapshot observer.
func (m *Mirror) Observe(snap model.Snapshot) {
	m.Offer(snap.Events)
}

func (m *Mirror) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.write()
		case <-m.done:
			m.write()
			return
		}
	}
}

func (m *Mirror) write() {
	m.mu.Lock()
	if !m.dirty {
		m.mu.Unlock()
		return
	}
	events := m.latest
	m.dirty = false
	m.mu.Unlock()

	if err := m.writer.ReplaceWindow(events); err != nil {
		count := m.failures.Add(1)
		now := time.Now().Unix()
		last := m.lastErrLog.Load()
		if now-last >= 10 && m.lastErrLog.CompareAndSwap(last, now) {
			log.Printf("duckdb: window mirror write failed (%d failures so far): %v", count, err)
		}
	}
}

// Stop writes any pending window and stops the writer.
func (m *Mirror) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		close(m.done)
	}
	m.wg.Wait()
}
