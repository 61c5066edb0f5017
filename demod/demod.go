package demod

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/linksim/carrier"
	"github.com/jrwynneiii/linksim/constellation"
	"github.com/jrwynneiii/linksim/errs"
	"github.com/jrwynneiii/linksim/mod"
	"gonum.org/v1/gonum/floats"
)

// Result is the output of one demodulation pass.
type Result struct {
	Scheme mod.Scheme
	Bits   []uint8
	// Product is the received waveform multiplied sample-wise by the reference
	// carrier, for inspection. Nil when the Demodulator skips it.
	Product []float64
	// Correlations holds the inner product of each symbol with the reference carrier
	Correlations []float64
	// EstimatedSNR is the per-sample channel SNR in dB recovered from the
	// decision errors, +Inf when there were none
	EstimatedSNR float64
}

// Demodulator recovers bits for one scheme against a fixed carrier.
type Demodulator struct {
	Scheme  mod.Scheme
	Carrier carrier.Carrier
	// SkipProduct leaves Result.Product nil, saving one waveform-sized
	// buffer per call when only the bits are wanted
	SkipProduct bool
}

func New(scheme mod.Scheme, c carrier.Carrier) (*Demodulator, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("demod: %w", err)
	}
	if c.Mpp < scheme.MinMpp() {
		return nil, fmt.Errorf("demod: %v needs at least %d samples per period, got %d: %w", scheme, scheme.MinMpp(), c.Mpp, errs.ErrInvalidInput)
	}
	d := &Demodulator{
		Scheme:  scheme,
		Carrier: c,
	}
	log.Debugf("[demod] Setting demodulator values: %v, fc=%.1f Hz, mpp=%d", scheme, c.Fc, c.Mpp)
	return d, nil
}

// Work demodulates a complete received waveform.
func (d *Demodulator) Work(rx []float64) (*Result, error) {
	return demodulate(d.Scheme, rx, d.Carrier, !d.SkipProduct)
}

// Demodulate dispatches on scheme. BPSK correlates against the sine carrier.
func Demodulate(scheme mod.Scheme, rx []float64, c carrier.Carrier) (*Result, error) {
	return demodulate(scheme, rx, c, true)
}

func demodulate(scheme mod.Scheme, rx []float64, c carrier.Carrier, keepProduct bool) (*Result, error) {
	switch scheme {
	case mod.BPSK:
		return bpsk(rx, c.Sin, c.Mpp, keepProduct)
	case mod.QAM16:
		return qam16(rx, c, keepProduct)
	}
	return nil, fmt.Errorf("demod: unsupported scheme %v: %w", scheme, errs.ErrInvalidInput)
}

// BPSK recovers one bit per carrier period by energy detection: the bit is 1
// when the segment's inner product with the reference is positive, and 0
// otherwise, including an exact zero.
func BPSK(rx, reference []float64, mpp int) (*Result, error) {
	return bpsk(rx, reference, mpp, true)
}

func bpsk(rx, reference []float64, mpp int, keepProduct bool) (*Result, error) {
	if mpp < 2 {
		return nil, fmt.Errorf("demod: BPSK: need at least 2 samples per period, got %d: %w", mpp, errs.ErrInvalidInput)
	}
	if len(reference) != mpp {
		return nil, fmt.Errorf("demod: BPSK: reference carrier has %d samples, want %d: %w", len(reference), mpp, errs.ErrLengthMismatch)
	}
	if len(rx) == 0 || len(rx)%mpp != 0 {
		return nil, fmt.Errorf("demod: BPSK: received %d samples, want a positive multiple of %d: %w", len(rx), mpp, errs.ErrInvalidInput)
	}

	n := len(rx) / mpp
	es := carrier.Energy(reference)
	res := &Result{
		Scheme:       mod.BPSK,
		Bits:         make([]uint8, n),
		Correlations: make([]float64, n),
	}
	if keepProduct {
		res.Product = make([]float64, len(rx))
	}
	snr := NewSNRCalc()

	for i := 0; i < n; i++ {
		segment := rx[i*mpp : (i+1)*mpp]
		if keepProduct {
			floats.MulTo(res.Product[i*mpp:(i+1)*mpp], segment, reference)
		}
		ep := floats.Dot(segment, reference)
		res.Correlations[i] = ep

		decided := -1.0
		if ep > 0 {
			res.Bits[i] = 1
			decided = 1.0
		}
		if es > 0 {
			y := ep / es
			snr.Add(decided*decided, (y-decided)*(y-decided))
		}
	}

	res.EstimatedSNR = snr.GetSNR(float64(mpp))
	log.Debugf("[demod] BPSK: %d symbols, estimated SNR %.2f dB", n, res.EstimatedSNR)
	return res, nil
}

// QAM16 recovers four bits per 4*mpp sample block. Each block is projected
// onto the cosine and sine carriers separately to estimate I and Q, the
// estimates are snapped to the nearest grid point and the point is looked up
// in the constellation.
func QAM16(rx []float64, c carrier.Carrier) (*Result, error) {
	return qam16(rx, c, true)
}

func qam16(rx []float64, c carrier.Carrier, keepProduct bool) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("demod: 16-QAM: %w", err)
	}
	mpp := c.Mpp
	if mpp < mod.QAM16.MinMpp() {
		return nil, fmt.Errorf("demod: 16-QAM: need at least %d samples per period, got %d: %w", mod.QAM16.MinMpp(), mpp, errs.ErrInvalidInput)
	}
	span := constellation.BitsPerSymbol * mpp
	if len(rx) == 0 || len(rx)%span != 0 {
		return nil, fmt.Errorf("demod: 16-QAM: received %d samples, want a positive multiple of %d: %w", len(rx), span, errs.ErrInvalidInput)
	}

	n := len(rx) / span
	combined := c.Combined()
	ec := carrier.Energy(c.Cos) * constellation.BitsPerSymbol
	es := carrier.Energy(c.Sin) * constellation.BitsPerSymbol
	res := &Result{
		Scheme:       mod.QAM16,
		Bits:         make([]uint8, 0, n*constellation.BitsPerSymbol),
		Correlations: make([]float64, n),
	}
	if keepProduct {
		res.Product = make([]float64, len(rx))
	}
	snr := NewSNRCalc()

	for k := 0; k < n; k++ {
		var ep, ip, qp float64
		for off := k * span; off < (k+1)*span; off += mpp {
			period := rx[off : off+mpp]
			if keepProduct {
				floats.MulTo(res.Product[off:off+mpp], period, combined)
			}
			ep += floats.Dot(period, combined)
			ip += floats.Dot(period, c.Cos)
			qp += floats.Dot(period, c.Sin)
		}
		res.Correlations[k] = ep

		iEst, qEst := ip/ec, qp/es
		pt := constellation.Nearest(iEst, qEst)
		p, err := constellation.Lookup(pt)
		if err != nil {
			return nil, fmt.Errorf("demod: 16-QAM symbol %d: %w", k, err)
		}
		bits := p.Bits()
		res.Bits = append(res.Bits, bits[:]...)

		di, dq := iEst-float64(pt.I), qEst-float64(pt.Q)
		snr.Add(pt.Energy(), di*di+dq*dq)
	}

	res.EstimatedSNR = snr.GetSNR(2 * float64(mpp))
	log.Debugf("[demod] 16-QAM: %d symbols, estimated SNR %.2f dB", n, res.EstimatedSNR)
	return res, nil
}
