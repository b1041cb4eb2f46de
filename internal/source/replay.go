package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
	"gopkg.in/yaml.v3"
)

// Scenario is a recorded or hand-written sequence of events replayed at a
// fixed pace. Example:
//
//	interval: 250ms
//	loop: true
//	events:
//	  - src_ip: 203.0.113.7
//	    src_country_code: BR
//	    ...
type Scenario struct {
	Interval time.Duration    `yaml:"interval"`
	Loop     bool             `yaml:"loop"`
	Events   []model.RawEvent `yaml:"events"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (Scenario, error) {
	var sc Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("source: read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario document.
func ParseScenario(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("source: decode scenario: %w", err)
	}
	if len(sc.Events) == 0 {
		return sc, fmt.Errorf("source: scenario has no events")
	}
	if sc.Interval <= 0 {
		sc.Interval = model.DefaultGenerationInterval
	}
	return sc, nil
}

// ReplaySource plays a scenario's events in order, once or in a loop.
type ReplaySource struct {
	*feed
}

// NewReplay starts replaying the scenario. A non-looping replay closes its
// channel after the last event.
func NewReplay(ctx context.Context, sc Scenario) *ReplaySource {
	f, ctx := newFeed(ctx, "replay", 0)
	s := &ReplaySource{feed: f}
	f.run(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(sc.Interval)
		defer ticker.Stop()
		for {
			for _, e := range sc.Events {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				if !s.sendEvent(ctx, e) {
					return
				}
			}
			if !sc.Loop {
				return
			}
		}
	})
	return s
}
