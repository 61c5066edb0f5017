package mod

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/linksim/carrier"
	"github.com/jrwynneiii/linksim/constellation"
	"github.com/jrwynneiii/linksim/errs"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

type Scheme int

const (
	BPSK Scheme = iota
	QAM16
)

func (s Scheme) String() string {
	switch s {
	case BPSK:
		return "BPSK"
	case QAM16:
		return "16-QAM"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// BitsPerSymbol is how many consecutive bits select one waveform symbol.
func (s Scheme) BitsPerSymbol() int {
	if s == QAM16 {
		return constellation.BitsPerSymbol
	}
	return 1
}

// MinMpp is the lowest carrier resolution the scheme can be recovered at.
// 16-QAM needs three points per period for the sampled cos and sin to span
// two dimensions.
func (s Scheme) MinMpp() int {
	if s == QAM16 {
		return 3
	}
	return 2
}

func (s Scheme) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(strings.ReplaceAll(s.String(), "-", ""))), nil
}

func (s *Scheme) UnmarshalText(text []byte) error {
	v, err := ParseScheme(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseScheme accepts "bpsk", "16qam", "qam16" or "16-qam" in any case.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bpsk":
		return BPSK, nil
	case "16qam", "qam16", "16-qam":
		return QAM16, nil
	}
	return 0, fmt.Errorf("mod: unknown modulation scheme %q (want bpsk or 16qam): %w", name, errs.ErrInvalidInput)
}

// Waveform is a sampled transmit signal and everything the receiver and the
// reporting side need to know about how it was built.
type Waveform struct {
	Scheme Scheme
	Fc     float64
	Mpp    int
	// Number of bits carried
	Bits    int
	Samples []float64
	// Time-average power over Duration()
	Power   float64
	Carrier carrier.Carrier
	// Reference is the carrier the energy detector correlates against:
	// sin for BPSK, cos+sin for 16-QAM
	Reference []float64
	// Indicator holds the raw bit value on every sample of that bit's period
	Indicator []float64
}

// Duration is the simulated length of the waveform in seconds.
func (w *Waveform) Duration() float64 {
	return float64(w.Bits) / w.Fc
}

// Time returns the sample instants of the waveform.
func (w *Waveform) Time() []float64 {
	return timeGrid(len(w.Samples), w.Fc, w.Mpp)
}

// Modulate dispatches on scheme.
func Modulate(s Scheme, bits []uint8, fc float64, mpp int) (*Waveform, error) {
	switch s {
	case BPSK:
		return ModulateBPSK(bits, fc, mpp)
	case QAM16:
		return ModulateQAM16(bits, fc, mpp)
	}
	return nil, fmt.Errorf("mod: unsupported scheme %v: %w", s, errs.ErrInvalidInput)
}

// ModulateBPSK sends +sin for a 1 and -sin for a 0, one carrier period per bit.
func ModulateBPSK(bits []uint8, fc float64, mpp int) (*Waveform, error) {
	if err := checkBits(BPSK, bits, mpp); err != nil {
		return nil, err
	}
	c, err := carrier.Generate(fc, mpp)
	if err != nil {
		return nil, fmt.Errorf("mod: BPSK: %w", err)
	}

	n := len(bits)
	w := &Waveform{
		Scheme:    BPSK,
		Fc:        fc,
		Mpp:       mpp,
		Bits:      n,
		Samples:   make([]float64, n*mpp),
		Carrier:   c,
		Reference: append([]float64(nil), c.Sin...),
		Indicator: indicator(bits, mpp),
	}

	for i, bit := range bits {
		lo, hi := symbolSpan(i, mpp)
		sign := -1.0
		if bit == 1 {
			sign = 1.0
		}
		floats.ScaleTo(w.Samples[lo:hi], sign, c.Sin)
	}

	w.Power = AveragePower(w.Samples, fc, mpp)
	log.Debugf("[mod] BPSK: %d bits -> %d samples, average power %.4f W", n, len(w.Samples), w.Power)
	return w, nil
}

// ModulateQAM16 maps each group of four bits to one constellation point and
// fills that symbol's whole 4*mpp sample span with I*cos + Q*sin.
func ModulateQAM16(bits []uint8, fc float64, mpp int) (*Waveform, error) {
	if err := checkBits(QAM16, bits, mpp); err != nil {
		return nil, err
	}
	c, err := carrier.Generate(fc, mpp)
	if err != nil {
		return nil, fmt.Errorf("mod: 16-QAM: %w", err)
	}

	n := len(bits)
	spanLen := constellation.BitsPerSymbol * mpp
	w := &Waveform{
		Scheme:    QAM16,
		Fc:        fc,
		Mpp:       mpp,
		Bits:      n,
		Samples:   make([]float64, n*mpp),
		Carrier:   c,
		Reference: c.Combined(),
		Indicator: indicator(bits, mpp),
	}

	period := make([]float64, mpp)
	for k := 0; k < n/constellation.BitsPerSymbol; k++ {
		p, err := constellation.PatternOf(bits[k*constellation.BitsPerSymbol : (k+1)*constellation.BitsPerSymbol])
		if err != nil {
			return nil, fmt.Errorf("mod: 16-QAM symbol %d: %w", k, err)
		}
		pt := constellation.Map(p)

		floats.ScaleTo(period, float64(pt.I), c.Cos)
		floats.AddScaled(period, float64(pt.Q), c.Sin)

		lo, hi := symbolSpan(k, spanLen)
		for off := lo; off < hi; off += mpp {
			copy(w.Samples[off:off+mpp], period)
		}
	}

	w.Power = AveragePower(w.Samples, fc, mpp)
	log.Debugf("[mod] 16-QAM: %d bits -> %d symbols, %d samples, average power %.4f W", n, n/constellation.BitsPerSymbol, len(w.Samples), w.Power)
	return w, nil
}

// AveragePower integrates s² over the sample grid with the trapezoid rule
// and divides by the simulated duration len(samples)/(fc*mpp).
func AveragePower(samples []float64, fc float64, mpp int) float64 {
	if len(samples) < 2 {
		return 0
	}
	sq := make([]float64, len(samples))
	floats.MulTo(sq, samples, samples)
	duration := float64(len(samples)) / (fc * float64(mpp))
	return integrate.Trapezoidal(timeGrid(len(samples), fc, mpp), sq) / duration
}

// symbolSpan is the sample range [lo, hi) of symbol k when every symbol is
// samplesPerSymbol samples long.
func symbolSpan(k, samplesPerSymbol int) (lo, hi int) {
	return k * samplesPerSymbol, (k + 1) * samplesPerSymbol
}

// timeGrid is the midpoint grid used by the carrier, extended over n samples.
func timeGrid(n int, fc float64, mpp int) []float64 {
	step := 1 / (fc * float64(mpp))
	if n == 1 {
		return []float64{step / 2}
	}
	return floats.Span(make([]float64, n), step/2, (float64(n)-0.5)*step)
}

func indicator(bits []uint8, mpp int) []float64 {
	out := make([]float64, len(bits)*mpp)
	for i, bit := range bits {
		if bit == 1 {
			lo, hi := symbolSpan(i, mpp)
			for j := lo; j < hi; j++ {
				out[j] = 1
			}
		}
	}
	return out
}

func checkBits(s Scheme, bits []uint8, mpp int) error {
	if len(bits) == 0 {
		return fmt.Errorf("mod: %v: empty bit sequence: %w", s, errs.ErrInvalidInput)
	}
	if len(bits)%s.BitsPerSymbol() != 0 {
		return fmt.Errorf("mod: %v: bit count %d is not divisible by %d: %w", s, len(bits), s.BitsPerSymbol(), errs.ErrInvalidInput)
	}
	if mpp < s.MinMpp() {
		return fmt.Errorf("mod: %v: need at least %d samples per period, got %d: %w", s, s.MinMpp(), mpp, errs.ErrInvalidInput)
	}
	for i, b := range bits {
		if b > 1 {
			return fmt.Errorf("mod: %v: bit %d has value %d: %w", s, i, b, errs.ErrInvalidInput)
		}
	}
	return nil
}
