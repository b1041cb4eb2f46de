package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"
)

// DefaultMaxLineSize is the default maximum size (in bytes) of a single line.
const DefaultMaxLineSize = 1024 * 1024 // 1MB

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	BufferSize  int
	MaxLineSize int
}

// StdinSource reads JSON lines from stdin.
type StdinSource struct {
	*feed
}

// NewStdin creates a StdinSource that reads from stdin in a background goroutine.
func NewStdin(ctx context.Context, conf ...StdinConfig) *StdinSource {
	return newStdinWithReader(ctx, os.Stdin, conf...)
}

func newStdinWithReader(ctx context.Context, r io.Reader, conf ...StdinConfig) *StdinSource {
	var c StdinConfig
	if len(conf) > 0 {
		c = conf[0]
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = DefaultMaxLineSize
	}
	f, ctx := newFeed(ctx, "stdin", c.BufferSize)
	s := &StdinSource{feed: f}
	f.run(ctx, func(ctx context.Context) { s.read(ctx, r, c.MaxLineSize) })
	return s
}

func (s *StdinSource) read(ctx context.Context, r io.Reader, maxLineSize int) {
	// The scanner blocks in Read, so it gets its own goroutine and the
	// forwarding loop watches ctx.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				log.Printf("source: stdin line exceeded max size (%d bytes), stopping stdin source", maxLineSize)
				return
			}
			log.Printf("source: stdin scanner error: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !s.sendLine(ctx, line) {
				return
			}
		}
	}
}
