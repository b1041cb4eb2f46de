package visual

// ArcTheme styles an arc.
type ArcTheme struct {
	Colors     [2]string
	Stroke     float64
	DashGap    float64
	DashLength float64
}

// RingTheme styles a ring pulse.
type RingTheme struct {
	MaxRadius        float64
	PropagationSpeed float64
	RepeatPeriod     int // ms
	Color            string
}

// Theme pairs the arc and ring styles for one class of event.
type Theme struct {
	Arc  ArcTheme
	Ring RingTheme
}

var (
	ThreatTheme = Theme{
		Arc: ArcTheme{
			Colors:     [2]string{"rgba(255, 0, 64, 0.9)", "rgba(255, 102, 0, 0.6)"},
			Stroke:     2.5,
			DashGap:    0.6,
			DashLength: 0.8,
		},
		Ring: RingTheme{
			MaxRadius:        4,
			PropagationSpeed: 4,
			RepeatPeriod:     600,
			Color:            "rgba(255, 0, 64, 0.6)",
		},
	}

	NormalTheme = Theme{
		Arc: ArcTheme{
			Colors:     [2]string{"rgba(0, 255, 65, 0.9)", "rgba(0, 212, 255, 0.6)"},
			Stroke:     1.2,
			DashGap:    1.5,
			DashLength: 0.4,
		},
		Ring: RingTheme{
			MaxRadius:        2,
			PropagationSpeed: 2,
			RepeatPeriod:     1200,
			Color:            "rgba(0, 255, 65, 0.4)",
		},
	}
)

// Point marker colors.
const (
	threatSourceColor = "#ff0040"
	normalSourceColor = "#00ff41"
	destinationColor  = "#00d4ff"
)

// Arc animation time range, in milliseconds.
const (
	minAnimateTime    = 1000
	animateTimeJitter = 800
)
