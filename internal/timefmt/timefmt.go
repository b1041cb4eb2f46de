// Package timefmt formats event timestamps for the dashboard log. Events
// arrive many per second, so formatted wall-clock strings are cached per
// second in a small LRU.
package timefmt

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ClockLayout is the wall-clock layout used in the event log.
const ClockLayout = "15:04:05"

const cacheSize = 512

// Formatter renders timestamps in a fixed location. It is safe for
// concurrent use.
type Formatter struct {
	loc   *time.Location
	cache *lru.Cache[int64, string]
}

// New creates a formatter for loc; nil means local time.
func New(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.Local
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[int64, string](cacheSize)
	return &Formatter{loc: loc, cache: cache}
}

// Clock formats t as HH:MM:SS.
func (f *Formatter) Clock(t time.Time) string {
	sec := t.Unix()
	if s, ok := f.cache.Get(sec); ok {
		return s
	}
	s := t.In(f.loc).Format(ClockLayout)
	f.cache.Add(sec, s)
	return s
}

// Age renders how long ago t was relative to now: "now", "12s", "3m", "2h".
func Age(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	default:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
}

// Bytes renders a byte count with a binary unit suffix.
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 4; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTP"[exp])
}
