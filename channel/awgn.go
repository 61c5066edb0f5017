package channel

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/linksim/errs"
	"gonum.org/v1/gonum/stat/distuv"
)

// AWGN is an additive white Gaussian noise channel. It owns its random
// source, so one AWGN must not be shared between goroutines.
type AWGN struct {
	Seed uint64
	src  rand.Source
}

// New creates a channel seeded from the clock.
func New() *AWGN {
	return NewWithSeed(uint64(time.Now().UnixNano()))
}

// NewWithSeed creates a channel whose noise is reproducible for a given seed.
func NewWithSeed(seed uint64) *AWGN {
	return &AWGN{
		Seed: seed,
		src:  rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
}

// NoisePower derives the noise power Pn = Pm / 10^(SNR/10). An SNR of +Inf
// dB gives a noiseless channel.
func NoisePower(pm, snrDB float64) (float64, error) {
	if pm <= 0 || math.IsInf(pm, 0) || math.IsNaN(pm) {
		return 0, fmt.Errorf("channel: signal power must be positive and finite, got %v: %w", pm, errs.ErrInvalidInput)
	}
	if math.IsNaN(snrDB) || math.IsInf(snrDB, -1) {
		return 0, fmt.Errorf("channel: SNR must be a number above -Inf dB, got %v: %w", snrDB, errs.ErrInvalidInput)
	}
	if math.IsInf(snrDB, 1) {
		return 0, nil
	}
	return pm / math.Pow(10, snrDB/10), nil
}

// Corrupt returns a new waveform equal to signal plus independent zero-mean
// Gaussian noise of variance NoisePower(pm, snrDB) on every sample.
func (a *AWGN) Corrupt(signal []float64, pm, snrDB float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("channel: empty waveform: %w", errs.ErrInvalidInput)
	}
	pn, err := NoisePower(pm, snrDB)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(signal))
	copy(out, signal)
	if pn == 0 {
		log.Debugf("[channel] Noiseless pass of %d samples", len(signal))
		return out, nil
	}

	noise := distuv.Normal{Mu: 0, Sigma: math.Sqrt(pn), Src: a.src}
	for i := range out {
		out[i] += noise.Rand()
	}
	log.Debugf("[channel] Added noise to %d samples: Pm=%.4f W, SNR=%.1f dB, Pn=%.4f W", len(signal), pm, snrDB, pn)
	return out, nil
}
