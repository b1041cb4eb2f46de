package severity

import "testing"

func TestLabel(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{-3, "NONE"}, {0, "NONE"}, {1, "LOW"}, {2, "GUARDED"},
		{3, "ELEVATED"}, {4, "HIGH"}, {5, "SEVERE"}, {9, "SEVERE"},
	}
	for _, tt := range tests {
		if got := Label(tt.level); got != tt.want {
			t.Errorf("Label(%d) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		// Digits
		{"0", None, true}, {"3", Elevated, true}, {"12", Severe, true},
		// Labels
		{"severe", Severe, true}, {" Guarded ", Guarded, true}, {"none", None, true},
		// Log severities
		{"INFO", Low, true}, {"warning", Elevated, true}, {"ERR", High, true},
		{"CRIT", Severe, true}, {"PANIC", Severe, true},
		// Prefix matching
		{"WARNING_LEVEL", Elevated, true}, {"ERROR_CODE_42", High, true},
		{"CRITICAL_ALERT", Severe, true},
		// Unknown
		{"", None, false}, {"foo", None, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := Parse(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Parse(%q) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFromOTLPNumber(t *testing.T) {
	tests := []struct {
		n      int32
		want   int
		wantOK bool
	}{
		{0, None, false}, {1, Low, true}, {9, Low, true}, {13, Elevated, true},
		{17, High, true}, {21, Severe, true}, {24, Severe, true},
	}
	for _, tt := range tests {
		got, ok := FromOTLPNumber(tt.n)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("FromOTLPNumber(%d) = %d, %v; want %d, %v", tt.n, got, ok, tt.want, tt.wantOK)
		}
	}
}
