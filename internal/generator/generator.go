package generator

import (
	"fmt"
	"math/rand/v2"

	"github.com/tinytelemetry/netglobe/internal/model"
)

const (
	// DefaultThreatProbability is the chance a synthetic event is a threat.
	DefaultThreatProbability = 0.15

	minPacketSize    = 64
	maxPacketSize    = 65535
	minEphemeralPort = 1024
	maxEphemeralPort = 65535
	maxThreatLevel   = 5
)

// Generator produces plausible random traffic events.
type Generator struct {
	rng               *rand.Rand
	threatProbability float64
}

// Config holds tunable parameters for the generator.
type Config struct {
	ThreatProbability float64
	Seed              uint64 // 0 = random
}

// New creates a generator.
func New(conf ...Config) *Generator {
	threatProbability := DefaultThreatProbability
	var seed uint64
	if len(conf) > 0 {
		if conf[0].ThreatProbability > 0 {
			threatProbability = conf[0].ThreatProbability
		}
		seed = conf[0].Seed
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Generator{
		rng:               rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		threatProbability: threatProbability,
	}
}

// Event returns one random event between two distinct cities.
// A Generator is not safe for concurrent use.
func (g *Generator) Event() model.RawEvent {
	src := g.city()
	dst := g.city()
	for dst.Name == src.Name {
		dst = g.city()
	}

	protocol := Protocols[g.rng.IntN(len(Protocols))]
	port := ProtocolPorts[protocol]
	if port == 0 {
		port = g.between(minEphemeralPort, maxEphemeralPort)
	}

	e := model.RawEvent{
		SrcIP:          g.ipv4(),
		SrcCountryCode: src.CountryCode,
		SrcCity:        src.Name,
		SrcLat:         src.Lat,
		SrcLng:         src.Lng,
		DstIP:          g.ipv4(),
		DstCountryCode: dst.CountryCode,
		DstCity:        dst.Name,
		DstLat:         dst.Lat,
		DstLng:         dst.Lng,
		Protocol:       protocol,
		Port:           &port,
		PacketSize:     g.between(minPacketSize, maxPacketSize),
		Status:         "active",
	}
	if g.rng.Float64() < g.threatProbability {
		e.ThreatLevel = g.between(1, maxThreatLevel)
		e.ThreatType = ThreatTypes[g.rng.IntN(len(ThreatTypes))]
	}
	return e
}

// Batch returns n random events.
func (g *Generator) Batch(n int) []model.RawEvent {
	out := make([]model.RawEvent, n)
	for i := range out {
		out[i] = g.Event()
	}
	return out
}

func (g *Generator) city() City {
	return Cities[g.rng.IntN(len(Cities))]
}

// between returns a uniform integer in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) ipv4() string {
	return fmt.Sprintf("%d.%d.%d.%d", g.between(1, 223), g.rng.IntN(256), g.rng.IntN(256), g.between(1, 254))
}
