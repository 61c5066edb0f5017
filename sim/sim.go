// Package sim wires the link stages together: modulate, pass through the
// noisy channel, demodulate and count bit errors.
package sim

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/linksim/ber"
	"github.com/jrwynneiii/linksim/channel"
	"github.com/jrwynneiii/linksim/demod"
	"github.com/jrwynneiii/linksim/mod"
	"gonum.org/v1/gonum/stat"
)

// maxSpectrumLen bounds the FFT used for the spectrum peak.
const maxSpectrumLen = 1 << 16

// MeanSamples is how many leading transmit samples SignalMean averages.
const MeanSamples = 200

// Params is everything a run needs besides the bits.
type Params struct {
	Scheme mod.Scheme
	Fc     float64
	Mpp    int
	SNR    float64
	// Seed for the channel noise; 0 seeds from the clock
	Seed uint64
}

func (p Params) String() string {
	return fmt.Sprintf("%v fc=%.1f Hz mpp=%d SNR=%.1f dB", p.Scheme, p.Fc, p.Mpp, p.SNR)
}

// Outcome is the full trace of one run.
type Outcome struct {
	Params        Params
	Waveform      *mod.Waveform
	Received      []float64
	Demod         *demod.Result
	BER           ber.Report
	PeakFrequency float64
	// SignalMean is the mean of the first MeanSamples transmit samples; a
	// carrier keyed over whole periods averages to zero
	SignalMean float64
	Elapsed    time.Duration
}

// Run pushes bits through the link once.
func Run(p Params, bits []uint8) (*Outcome, error) {
	start := time.Now()

	w, err := mod.Modulate(p.Scheme, bits, p.Fc, p.Mpp)
	if err != nil {
		return nil, err
	}
	d, err := demod.New(p.Scheme, w.Carrier)
	if err != nil {
		return nil, err
	}
	o, err := receive(p, w, bits, newChannel(p.Seed, 0), d)
	if err != nil {
		return nil, err
	}
	o.PeakFrequency = spectrumPeak(w)
	o.SignalMean = signalMean(w.Samples)
	o.Elapsed = time.Since(start)
	log.Debugf("[sim] %v: %v in %v", p, o.BER, o.Elapsed)
	return o, nil
}

func receive(p Params, w *mod.Waveform, bits []uint8, ch *channel.AWGN, d *demod.Demodulator) (*Outcome, error) {
	rx, err := ch.Corrupt(w.Samples, w.Power, p.SNR)
	if err != nil {
		return nil, err
	}
	res, err := d.Work(rx)
	if err != nil {
		return nil, err
	}
	report, err := ber.Evaluate(bits, res.Bits)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Params:   p,
		Waveform: w,
		Received: rx,
		Demod:    res,
		BER:      report,
	}, nil
}

func newChannel(seed, offset uint64) *channel.AWGN {
	if seed == 0 {
		return channel.NewWithSeed(uint64(time.Now().UnixNano()) + offset)
	}
	return channel.NewWithSeed(seed + offset)
}

func spectrumPeak(w *mod.Waveform) float64 {
	n := 1
	for n*2 <= len(w.Samples) && n*2 <= maxSpectrumLen {
		n *= 2
	}
	if n < 2 {
		return 0
	}
	return demod.PeakFrequency(w.Samples[:n], w.Carrier.SampleRate())
}

func signalMean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return stat.Mean(samples[:min(MeanSamples, len(samples))], nil)
}
