package demod

import "math"

// SNRCalc is a decision-directed SNR estimator. It is fed the energy of each
// decided symbol and the squared distance between the normalised correlator
// output and that decision. The ratio of the two is the SNR after the
// correlator; dividing out the correlator's processing gain gives the SNR per
// received sample, which is the figure the channel was configured with.
//
// Decision errors at low SNR make the estimate read high, since a noisy value
// pushed past a threshold is measured against the wrong point.
type SNRCalc struct {
	Signal float64
	Noise  float64
	Count  int
}

func NewSNRCalc() *SNRCalc {
	return &SNRCalc{}
}

// Add accumulates one symbol.
func (s *SNRCalc) Add(signal, noise float64) {
	s.Signal += signal
	s.Noise += noise
	s.Count++
}

// GetSNR returns the per-sample SNR in dB, given the correlator gain in
// linear units. It is +Inf when no noise was seen and NaN with no symbols.
func (s *SNRCalc) GetSNR(gain float64) float64 {
	if s.Count == 0 || s.Signal == 0 {
		return math.NaN()
	}
	if s.Noise == 0 {
		return math.Inf(1)
	}
	return 10*math.Log10(s.Signal/s.Noise) - 10*math.Log10(gain)
}
