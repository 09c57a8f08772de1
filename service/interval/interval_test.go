package interval

import (
	"testing"
	"time"
)

func at(hour int) time.Time {
	return time.Date(2025, 3, 14, hour, 0, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Range
		want bool
	}{
		{"disjoint", Range{at(8), at(9)}, Range{at(10), at(11)}, false},
		{"touching boundary", Range{at(10), at(12)}, Range{at(12), at(14)}, true},
		{"contained", Range{at(8), at(18)}, Range{at(10), at(11)}, true},
		{"partial", Range{at(8), at(11)}, Range{at(10), at(12)}, true},
		{"instant inside", Range{at(10), at(10)}, Range{at(9), at(11)}, true},
		{"open-ended after", Range{at(10), time.Time{}}, Range{at(12), at(14)}, true},
		{"open-ended starts later", Range{at(15), time.Time{}}, Range{at(12), at(14)}, false},
		{"both open-ended", Range{at(15), time.Time{}}, Range{at(1), time.Time{}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.a, tc.b); got != tc.want {
				t.Fatalf("Overlaps(a, b) = %v, want %v", got, tc.want)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Fatalf("Overlaps(b, a) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	if (Range{at(12), at(10)}).Valid() {
		t.Fatal("reversed range reported valid")
	}
	if !(Range{at(12), time.Time{}}).Valid() {
		t.Fatal("open-ended range reported invalid")
	}
}
