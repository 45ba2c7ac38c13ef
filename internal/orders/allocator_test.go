package orders

import (
	"testing"
	"time"
)

func TestNextCode(t *testing.T) {
	now := time.Date(2024, time.March, 3, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		latest string
		want   string
	}{
		{"first_of_year", "", "HP-2024-001"},
		{"increments", "HP-2024-007", "HP-2024-008"},
		{"year_reset", "HP-2023-045", "HP-2024-001"},
		{"malformed", "ORDER-17", "HP-2024-001"},
		{"short_sequence", "HP-2024-07", "HP-2024-001"},
		{"other_prefix", "XY-2024-010", "HP-2024-001"},
		{"crosses_999", "HP-2024-999", "HP-2024-1000"},
		{"beyond_1000", "HP-2024-1041", "HP-2024-1042"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := NextCode("HP", tt.latest, now); got != tt.want {
				t.Fatalf("NextCode(%q) = %q, want %q", tt.latest, got, tt.want)
			}
		})
	}
}

func TestNextCode_MonotonicWithinYear(t *testing.T) {
	now := time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)
	code := ""
	for i := 1; i <= 1005; i++ {
		next := NextCode("HP", code, now)
		_, year, seq, ok := ParseCode(next)
		if !ok || year != 2024 || seq != i {
			t.Fatalf("step %d: got %q", i, next)
		}
		code = next
	}
}

func TestParseCode(t *testing.T) {
	prefix, year, seq, ok := ParseCode("HP-2025-012")
	if !ok || prefix != "HP" || year != 2025 || seq != 12 {
		t.Fatalf("unexpected parse: %s %d %d %v", prefix, year, seq, ok)
	}
	if _, _, _, ok := ParseCode("HP-2025-000"); ok {
		t.Fatal("sequence zero must be rejected")
	}
}
