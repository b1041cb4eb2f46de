package stats

import (
	"reflect"
	"testing"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

func samePointer(a, b any) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func TestPublisher_FirstUpdateIsChange(t *testing.T) {
	p := NewPublisher()
	_, changed := p.Update(Compute(nil, nil, testNow))
	if !changed {
		t.Fatal("first Update should report a change")
	}
}

func TestPublisher_IdenticalInputsKeepIdentity(t *testing.T) {
	events := []model.TrafficEvent{
		event("TCP", "US", 100, testNow.Add(-time.Second)),
		event("UDP", "FR", 200, testNow.Add(-2*time.Second)),
	}
	threats := []model.TrafficEvent{threat(2, "XSS Attack")}

	p := NewPublisher()
	first, _ := p.Update(Compute(events, threats, testNow))
	second, changed := p.Update(Compute(events, threats, testNow))

	if changed {
		t.Fatal("identical inputs reported a change")
	}
	if !samePointer(first.ProtocolDistribution, second.ProtocolDistribution) {
		t.Error("ProtocolDistribution identity changed")
	}
	if !samePointer(first.CountryDistribution, second.CountryDistribution) {
		t.Error("CountryDistribution identity changed")
	}
	if !samePointer(first.ThreatsByType, second.ThreatsByType) {
		t.Error("ThreatsByType identity changed")
	}
	if &first.BandwidthHistory[0] != &second.BandwidthHistory[0] {
		t.Error("BandwidthHistory identity changed")
	}
}

func TestPublisher_PartialChangeKeepsUnchangedParts(t *testing.T) {
	events := []model.TrafficEvent{event("TCP", "US", 100, testNow.Add(-time.Second))}

	p := NewPublisher()
	first, _ := p.Update(Compute(events, nil, testNow))

	events = append(events, event("TCP", "US", 50, testNow.Add(-time.Second)))
	second, changed := p.Update(Compute(events, nil, testNow))

	if !changed {
		t.Fatal("expected change after adding an event")
	}
	if !samePointer(first.ThreatsByType, second.ThreatsByType) {
		t.Error("unchanged ThreatsByType should keep its identity")
	}
	if samePointer(first.ProtocolDistribution, second.ProtocolDistribution) {
		t.Error("changed ProtocolDistribution should be a new instance")
	}
	if second.TotalBandwidth != 150 {
		t.Errorf("TotalBandwidth = %d, want 150", second.TotalBandwidth)
	}
	if got := p.Current().TotalPackets; got != 2 {
		t.Errorf("Current().TotalPackets = %d, want 2", got)
	}
}

func TestPublisher_TimeDrivenChange(t *testing.T) {
	events := []model.TrafficEvent{event("TCP", "US", 100, testNow.Add(-time.Second))}

	p := NewPublisher()
	p.Update(Compute(events, nil, testNow))

	// The event shifts into an older bucket without any new ingest.
	_, changed := p.Update(Compute(events, nil, testNow.Add(10*time.Second)))
	if !changed {
		t.Fatal("expected change as the event moved to an older bucket")
	}
}
