// Package severity names threat levels and maps free-form severity text
// from upstream producers onto them.
package severity

import (
	"strconv"
	"strings"
)

// Threat levels. Zero is benign traffic.
const (
	None = iota
	Low
	Guarded
	Elevated
	High
	Severe
)

var labels = [...]string{"NONE", "LOW", "GUARDED", "ELEVATED", "HIGH", "SEVERE"}

// Label returns the display label for a threat level. Out-of-range levels
// are clamped.
func Label(level int) string {
	return labels[Clamp(level)]
}

// Clamp bounds level to None..Severe.
func Clamp(level int) int {
	if level < None {
		return None
	}
	if level > Severe {
		return Severe
	}
	return level
}

// Parse converts severity text into a threat level. It accepts digits,
// threat labels, and common log severity spellings (WARN, ERR, CRIT, ...).
// ok is false when the text is not recognized.
func Parse(text string) (level int, ok bool) {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	if normalized == "" {
		return None, false
	}
	if n, err := strconv.Atoi(normalized); err == nil {
		return Clamp(n), true
	}

	switch normalized {
	case "NONE", "BENIGN", "OK":
		return None, true
	case "LOW", "TRACE", "TRAC", "TRC", "DEBUG", "DEBU", "DBG", "INFO", "INF", "INFORMATION", "NOTICE":
		return Low, true
	case "GUARDED", "MEDIUM", "MODERATE":
		return Guarded, true
	case "ELEVATED", "WARN", "WARNING", "WRN", "WRNG":
		return Elevated, true
	case "HIGH", "ERROR", "ERR", "ERRO", "ALERT":
		return High, true
	case "SEVERE", "CRITICAL", "CRIT", "CRT", "FATAL", "FATL", "FTL", "PANIC", "EMERGENCY":
		return Severe, true
	}

	if len(normalized) >= 4 {
		switch normalized[:4] {
		case "INFO", "DEBU", "TRAC":
			return Low, true
		case "WARN":
			return Elevated, true
		case "ERRO":
			return High, true
		case "FATA", "CRIT", "SEVE":
			return Severe, true
		}
	}
	return None, false
}

// FromOTLPNumber maps an OTLP SeverityNumber (1..24) onto a threat level.
// Unspecified (0) reports ok=false.
func FromOTLPNumber(n int32) (level int, ok bool) {
	switch {
	case n <= 0:
		return None, false
	case n <= 12: // TRACE..INFO4
		return Low, true
	case n <= 16: // WARN..WARN4
		return Elevated, true
	case n <= 20: // ERROR..ERROR4
		return High, true
	default: // FATAL..FATAL4
		return Severe, true
	}
}
