// Package constellation is the 16-QAM symbol table: a bijection between the
// sixteen 4-bit patterns and the (I,Q) amplitude grid {-3,-1,+1,+3}².
//
// The table is built once and checked for bijectivity when the package is
// loaded. A table that fails the check is a programming error and panics.
package constellation

import (
	"fmt"
	"math"

	"github.com/jrwynneiii/linksim/errs"
)

// BitsPerSymbol is the number of bits carried by one 16-QAM symbol.
const BitsPerSymbol = 4

// Size is the number of constellation points.
const Size = 1 << BitsPerSymbol

// Levels are the amplitudes available on each quadrature axis.
var Levels = [4]int{-3, -1, 1, 3}

// Point is one constellation point.
type Point struct {
	I int
	Q int
}

func (p Point) String() string {
	return fmt.Sprintf("(%+d,%+d)", p.I, p.Q)
}

// Energy is I²+Q².
func (p Point) Energy() float64 {
	return float64(p.I*p.I + p.Q*p.Q)
}

// Pattern is a 4-bit symbol with the first transmitted bit in the MSB.
type Pattern uint8

// Bits expands the pattern back to transmission order.
func (p Pattern) Bits() [BitsPerSymbol]uint8 {
	var out [BitsPerSymbol]uint8
	for i := range out {
		out[i] = uint8(p>>(BitsPerSymbol-1-i)) & 1
	}
	return out
}

func (p Pattern) String() string {
	return fmt.Sprintf("%04b", uint8(p))
}

// Table maps a pattern to its point. Index with a Pattern.
type Table [Size]Point

// Gray coded per axis: b0b1 picks I, b2b3 picks Q.
var (
	inPhase    = [4]int{-3, -1, 3, 1} // 00 01 10 11
	quadrature = [4]int{3, 1, -3, -1} // 00 01 10 11
)

var (
	table   Table
	inverse map[Point]Pattern
)

func init() {
	for p := range Size {
		table[p] = Point{I: inPhase[p>>2], Q: quadrature[p&0x3]}
	}
	var err error
	if inverse, err = Validate(table); err != nil {
		panic(err)
	}
}

// Validate checks that every entry sits on the amplitude grid and that no
// two patterns share a point. It returns the inverse lookup on success.
func Validate(t Table) (map[Point]Pattern, error) {
	inv := make(map[Point]Pattern, Size)
	for p, pt := range t {
		if !onGrid(pt.I) || !onGrid(pt.Q) {
			return nil, fmt.Errorf("constellation: pattern %04b maps off grid to %v: %w", p, pt, errs.ErrConstellationLookup)
		}
		if prev, ok := inv[pt]; ok {
			return nil, fmt.Errorf("constellation: patterns %v and %04b both map to %v: %w", prev, p, pt, errs.ErrConstellationLookup)
		}
		inv[pt] = Pattern(p)
	}
	return inv, nil
}

func onGrid(v int) bool {
	for _, l := range Levels {
		if v == l {
			return true
		}
	}
	return false
}

// Default returns a copy of the validated symbol table.
func Default() Table {
	return table
}

// PatternOf packs four bits into a pattern.
func PatternOf(bits []uint8) (Pattern, error) {
	if len(bits) != BitsPerSymbol {
		return 0, fmt.Errorf("constellation: symbol needs %d bits, got %d: %w", BitsPerSymbol, len(bits), errs.ErrLengthMismatch)
	}
	var p Pattern
	for i, b := range bits {
		if b > 1 {
			return 0, fmt.Errorf("constellation: bit %d has value %d: %w", i, b, errs.ErrInvalidInput)
		}
		p = p<<1 | Pattern(b)
	}
	return p, nil
}

// Map returns the point for a pattern.
func Map(p Pattern) Point {
	return table[p&(Size-1)]
}

// Lookup inverts the table.
func Lookup(pt Point) (Pattern, error) {
	p, ok := inverse[pt]
	if !ok {
		return 0, fmt.Errorf("constellation: no pattern for point %v: %w", pt, errs.ErrConstellationLookup)
	}
	return p, nil
}

// Quantize snaps an amplitude estimate to the nearest level. The decision
// thresholds are -2, 0 and +2; a value on a threshold takes the larger level.
func Quantize(x float64) int {
	switch {
	case math.IsNaN(x):
		return Levels[2]
	case x < -2:
		return -3
	case x < 0:
		return -1
	case x < 2:
		return 1
	default:
		return 3
	}
}

// Nearest returns the constellation point closest to the estimate (i, q).
// The grid is square, so the 2-D decision splits into one per axis.
func Nearest(i, q float64) Point {
	return Point{I: Quantize(i), Q: Quantize(q)}
}

// AverageEnergy is the mean I²+Q² over all points, assuming equiprobable symbols.
func AverageEnergy() float64 {
	var sum float64
	for _, pt := range table {
		sum += pt.Energy()
	}
	return sum / Size
}
