package constellation

import (
	"errors"
	"math"
	"testing"

	"github.com/jrwynneiii/linksim/errs"
)

func TestTableIsBijective(t *testing.T) {
	seen := make(map[Point]Pattern)
	for p := range Size {
		pt := Map(Pattern(p))
		if prev, ok := seen[pt]; ok {
			t.Fatalf("patterns %v and %04b share point %v", prev, p, pt)
		}
		seen[pt] = Pattern(p)

		back, err := Lookup(pt)
		if err != nil {
			t.Fatalf("Lookup(%v): %v", pt, err)
		}
		if back != Pattern(p) {
			t.Errorf("Lookup(Map(%04b)) = %v", p, back)
		}
	}

	// Every grid point is reachable
	for _, i := range Levels {
		for _, q := range Levels {
			if _, ok := seen[Point{i, q}]; !ok {
				t.Errorf("point (%d,%d) is unreachable", i, q)
			}
		}
	}
}

func TestGrayCoding(t *testing.T) {
	// Neighbours on either axis differ in exactly one bit
	for p := range Size {
		a := Map(Pattern(p))
		for q := range Size {
			b := Map(Pattern(q))
			di, dq := abs(a.I-b.I), abs(a.Q-b.Q)
			if (di == 2 && dq == 0) || (di == 0 && dq == 2) {
				if d := popcount(uint8(p ^ q)); d != 1 {
					t.Errorf("neighbours %04b %v and %04b %v differ in %d bits", p, a, q, b, d)
				}
			}
		}
	}
}

func TestKnownPoints(t *testing.T) {
	tests := []struct {
		bits []uint8
		want Point
	}{
		{[]uint8{0, 0, 0, 0}, Point{-3, 3}},
		{[]uint8{0, 0, 0, 1}, Point{-3, 1}},
		{[]uint8{0, 0, 1, 0}, Point{-3, -3}},
		{[]uint8{0, 0, 1, 1}, Point{-3, -1}},
		{[]uint8{0, 1, 0, 0}, Point{-1, 3}},
		{[]uint8{1, 0, 1, 1}, Point{3, -1}},
		{[]uint8{1, 1, 0, 1}, Point{1, 1}},
		{[]uint8{1, 1, 1, 1}, Point{1, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			p, err := PatternOf(tt.bits)
			if err != nil {
				t.Fatal(err)
			}
			if got := Map(p); got != tt.want {
				t.Errorf("Map(%v) = %v, want %v", p, got, tt.want)
			}
			bits := p.Bits()
			for i := range bits {
				if bits[i] != tt.bits[i] {
					t.Errorf("Bits()[%d] = %d, want %d", i, bits[i], tt.bits[i])
				}
			}
		})
	}
}

func TestValidateRejectsAliasedTable(t *testing.T) {
	// Testing the third bit twice instead of the fourth collapses pairs of
	// patterns onto one point
	var aliased Table
	for p := range Size {
		b2 := (p >> 1) & 1
		aliased[p] = Point{I: inPhase[p>>2], Q: quadrature[b2<<1|b2]}
	}
	if _, err := Validate(aliased); !errors.Is(err, errs.ErrConstellationLookup) {
		t.Errorf("expected ErrConstellationLookup, got %v", err)
	}

	offGrid := Default()
	offGrid[5] = Point{0, 3}
	if _, err := Validate(offGrid); !errors.Is(err, errs.ErrConstellationLookup) {
		t.Errorf("expected ErrConstellationLookup for off-grid point, got %v", err)
	}
}

func TestLookupUnknownPoint(t *testing.T) {
	if _, err := Lookup(Point{0, 0}); !errors.Is(err, errs.ErrConstellationLookup) {
		t.Errorf("expected ErrConstellationLookup, got %v", err)
	}
}

func TestPatternOfInvalid(t *testing.T) {
	if _, err := PatternOf([]uint8{1, 0, 1}); !errors.Is(err, errs.ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	if _, err := PatternOf([]uint8{1, 0, 2, 0}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-10, -3},
		{-3, -3},
		{-2.0001, -3},
		{-2, -1},
		{-0.5, -1},
		{0, 1},
		{1.9, 1},
		{2, 3},
		{3.4, 3},
		{math.Inf(-1), -3},
		{math.Inf(1), 3},
	}
	for _, tt := range tests {
		if got := Quantize(tt.in); got != tt.want {
			t.Errorf("Quantize(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if got := Nearest(2.7, -0.9); got != (Point{3, -1}) {
		t.Errorf("Nearest(2.7, -0.9) = %v", got)
	}
}

func TestAverageEnergy(t *testing.T) {
	// E[I²] = E[Q²] = (9+1+1+9)/4
	if got := AverageEnergy(); got != 10 {
		t.Errorf("AverageEnergy = %v, want 10", got)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func popcount(x uint8) int {
	n := 0
	for ; x != 0; x &= x - 1 {
		n++
	}
	return n
}
