// Command netglobe-gen feeds synthetic traffic events to a running netglobe
// service over its TCP ingest port, one JSON object per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tinytelemetry/netglobe/internal/generator"
)

type cli struct {
	Addr              string        `help:"TCP ingest address of the netglobe service." default:"127.0.0.1:4000"`
	MinRate           float64       `help:"Lower bound of events per second." default:"2"`
	MaxRate           float64       `help:"Upper bound of events per second." default:"5"`
	Count             int           `help:"Stop after this many events (0 runs until interrupted)." default:"0"`
	ThreatProbability float64       `help:"Probability that an event is a threat." default:"0.15"`
	Seed              uint64        `help:"Random seed (0 picks one from the clock)." default:"0"`
	DialTimeout       time.Duration `help:"Connection timeout." default:"5s"`
	Stdout            bool          `help:"Write lines to stdout instead of dialing the service."`
}

func (c *cli) Validate() error {
	if c.MinRate <= 0 || c.MaxRate < c.MinRate {
		return fmt.Errorf("invalid rate range %v..%v", c.MinRate, c.MaxRate)
	}
	if c.ThreatProbability < 0 || c.ThreatProbability > 1 {
		return fmt.Errorf("threat-probability must be within 0..1")
	}
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	return nil
}

func main() {
	var args cli
	kctx := kong.Parse(&args,
		kong.Name("netglobe-gen"),
		kong.Description("Send synthetic traffic events to a netglobe service."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.FatalIfErrorf(run(ctx, args))
}

func run(ctx context.Context, args cli) error {
	var w io.Writer = os.Stdout
	if !args.Stdout {
		conn, err := net.DialTimeout("tcp", args.Addr, args.DialTimeout)
		if err != nil {
			return fmt.Errorf("dial %s: %w", args.Addr, err)
		}
		defer conn.Close()
		w = conn
		log.Printf("netglobe-gen: sending to %s at %.1f-%.1f events/sec", args.Addr, args.MinRate, args.MaxRate)
	}

	sent, err := send(ctx, w, args)
	if !args.Stdout {
		log.Printf("netglobe-gen: sent %d events", sent)
	}
	return err
}

// send writes generated events to w until ctx ends or args.Count is reached.
func send(ctx context.Context, w io.Writer, args cli) (int, error) {
	gen := generator.New(generator.Config{
		ThreatProbability: args.ThreatProbability,
		Seed:              args.Seed,
	})
	seed := args.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	jitter := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	sent := 0
	for args.Count == 0 || sent < args.Count {
		if err := enc.Encode(gen.Event()); err != nil {
			return sent, fmt.Errorf("encode event: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return sent, fmt.Errorf("write event: %w", err)
		}
		sent++
		if args.Count > 0 && sent >= args.Count {
			break
		}

		timer := time.NewTimer(nextDelay(jitter, args.MinRate, args.MaxRate))
		select {
		case <-ctx.Done():
			timer.Stop()
			return sent, nil
		case <-timer.C:
		}
	}
	return sent, nil
}

func nextDelay(r *rand.Rand, minRate, maxRate float64) time.Duration {
	rate := minRate + r.Float64()*(maxRate-minRate)
	return time.Duration(float64(time.Second) / rate)
}
