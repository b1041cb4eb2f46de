package source

import (
	"context"
	"time"

	"github.com/tinytelemetry/netglobe/internal/generator"
	"github.com/tinytelemetry/netglobe/internal/model"
)

// GeneratorConfig configures the synthetic traffic source.
type GeneratorConfig struct {
	Interval   time.Duration
	BufferSize int
	Generator  generator.Config
}

// GeneratorSource emits one synthetic event per interval.
type GeneratorSource struct {
	*feed
}

// NewGenerator starts emitting synthetic traffic until stopped.
func NewGenerator(ctx context.Context, conf GeneratorConfig) *GeneratorSource {
	if conf.Interval <= 0 {
		conf.Interval = model.DefaultGenerationInterval
	}
	f, ctx := newFeed(ctx, "generator", conf.BufferSize)
	s := &GeneratorSource{feed: f}
	gen := generator.New(conf.Generator)
	f.run(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(conf.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.sendEvent(ctx, gen.Event()) {
					return
				}
			}
		}
	})
	return s
}
