package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DefaultPostgresChannel is the NOTIFY channel used when none is configured.
const DefaultPostgresChannel = "traffic_events"

// PostgresConfig configures a LISTEN/NOTIFY subscription. Producers publish
// one row per notification, typically from an AFTER INSERT trigger calling
// pg_notify(channel, row_to_json(NEW)::text).
type PostgresConfig struct {
	DSN        string
	Channel    string
	BufferSize int
}

// PostgresSource receives traffic event rows over LISTEN/NOTIFY.
type PostgresSource struct {
	*feed
	dsn     string
	channel string
	conn    *pgx.Conn
}

// NewPostgres connects and issues LISTEN before returning, so a bad DSN
// fails at startup. Later connection losses are retried with backoff.
func NewPostgres(ctx context.Context, conf PostgresConfig) (*PostgresSource, error) {
	if conf.Channel == "" {
		conf.Channel = DefaultPostgresChannel
	}
	s := &PostgresSource{dsn: conf.DSN, channel: conf.Channel}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, err := s.listen(connectCtx)
	if err != nil {
		return nil, err
	}
	s.conn = conn

	f, ctx := newFeed(ctx, "postgres", conf.BufferSize)
	s.feed = f
	f.run(ctx, func(ctx context.Context) { reconnect(ctx, "postgres "+s.channel, s.session) })
	return s, nil
}

func (s *PostgresSource) listen(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("source: postgres connect: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("source: postgres listen %q: %w", s.channel, err)
	}
	return conn, nil
}

func (s *PostgresSource) session(ctx context.Context, connected func()) error {
	conn := s.conn
	s.conn = nil
	if conn == nil {
		var err error
		if conn, err = s.listen(ctx); err != nil {
			return err
		}
	}
	defer conn.Close(context.Background())
	connected()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		if !s.sendLine(ctx, n.Payload) {
			return nil
		}
	}
}
