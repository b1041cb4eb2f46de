package visual

import (
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// PointSet derives location markers from the rolling window, rebuilding
// them at most once per throttle interval.
type PointSet struct {
	mu       sync.Mutex
	throttle time.Duration
	last     time.Time
	points   []model.Point
}

// NewPointSet creates a point set. A non-positive throttle uses the default.
func NewPointSet(throttle time.Duration) *PointSet {
	if throttle <= 0 {
		throttle = model.DefaultPointsThrottle
	}
	return &PointSet{throttle: throttle}
}

// Update rebuilds the markers from events when the throttle interval has
// elapsed and reports whether a rebuild happened. The first call always rebuilds.
func (p *PointSet) Update(events []model.TrafficEvent, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() && now.Sub(p.last) < p.throttle {
		return false
	}
	p.last = now
	p.points = buildPoints(events)
	return true
}

// Points returns a copy of the current markers.
func (p *PointSet) Points() []model.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.points)
}

// buildPoints keeps the first marker seen for each coordinate pair. Events
// are newest first, so the newest event decides a source marker's style.
func buildPoints(events []model.TrafficEvent) []model.Point {
	seen := make(map[string]struct{}, len(events)*2)
	points := make([]model.Point, 0, len(events)*2)

	add := func(pt model.Point) {
		key := coordKey(pt.Lat, pt.Lng)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		points = append(points, pt)
	}

	for _, e := range events {
		src := model.Point{Lat: e.SrcLat, Lng: e.SrcLng, City: e.SrcCity, Size: 0.5, Color: normalSourceColor}
		if e.IsThreat() {
			src.Size = 0.7
			src.Color = threatSourceColor
			src.IsThreat = true
		}
		add(src)
		add(model.Point{Lat: e.DstLat, Lng: e.DstLng, City: e.DstCity, Size: 0.6, Color: destinationColor})
	}
	return points
}

func coordKey(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}
