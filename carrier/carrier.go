package carrier

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/linksim/errs"
	"gonum.org/v1/gonum/floats"
)

// Carrier is one sampled period of the in-phase and quadrature reference
// waveforms at frequency Fc.
type Carrier struct {
	Fc  float64
	Mpp int
	Sin []float64
	Cos []float64
}

// Generate samples one period of sin and cos at fc with mpp points on the
// midpoint grid t_k = (k+1/2)/(mpp*fc), which covers [0, 1/fc) uniformly.
func Generate(fc float64, mpp int) (Carrier, error) {
	if fc <= 0 || math.IsInf(fc, 0) || math.IsNaN(fc) {
		return Carrier{}, fmt.Errorf("carrier: frequency must be positive and finite, got %v: %w", fc, errs.ErrInvalidInput)
	}
	if mpp < 2 {
		return Carrier{}, fmt.Errorf("carrier: need at least 2 samples per period, got %d: %w", mpp, errs.ErrInvalidInput)
	}

	period := 1 / fc
	step := period / float64(mpp)

	// Span is endpoint-inclusive, so the midpoints run from step/2 to period-step/2
	t := floats.Span(make([]float64, mpp), step/2, period-step/2)

	c := Carrier{
		Fc:  fc,
		Mpp: mpp,
		Sin: make([]float64, mpp),
		Cos: make([]float64, mpp),
	}
	for k, tk := range t {
		phase := 2 * math.Pi * fc * tk
		c.Sin[k] = math.Sin(phase)
		c.Cos[k] = math.Cos(phase)
	}
	log.Debugf("[carrier] Generated %d samples at fc=%.1f Hz (fs=%.1f Hz)", mpp, fc, c.SampleRate())
	return c, nil
}

// SampleRate is the simulated sample rate in Hz.
func (c Carrier) SampleRate() float64 {
	return c.Fc * float64(c.Mpp)
}

// Combined returns the sample-wise sum of the cosine and sine carriers.
func (c Carrier) Combined() []float64 {
	out := make([]float64, c.Mpp)
	floats.AddTo(out, c.Cos, c.Sin)
	return out
}

// Validate checks that both component arrays are one period of Mpp samples.
func (c Carrier) Validate() error {
	if c.Mpp < 2 {
		return fmt.Errorf("carrier: need at least 2 samples per period, got %d: %w", c.Mpp, errs.ErrInvalidInput)
	}
	if len(c.Sin) != c.Mpp || len(c.Cos) != c.Mpp {
		return fmt.Errorf("carrier: component length (sin %d, cos %d) does not match mpp %d: %w", len(c.Sin), len(c.Cos), c.Mpp, errs.ErrLengthMismatch)
	}
	return nil
}

// Energy is the pseudo-energy of a sampled waveform, the sum of its squares.
func Energy(x []float64) float64 {
	return floats.Dot(x, x)
}
