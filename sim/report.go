package sim

import (
	"fmt"
	"os"

	"github.com/jrwynneiii/linksim/mod"
	"gopkg.in/yaml.v3"
)

// Report is the serialisable summary of a run or a sweep.
type Report struct {
	Scheme           mod.Scheme `yaml:"scheme"`
	CarrierFrequency float64    `yaml:"carrier_frequency"`
	SamplesPerPeriod int        `yaml:"samples_per_period"`
	SNR              float64    `yaml:"snr_db"`
	Seed             uint64     `yaml:"seed,omitempty"`
	Bits             int        `yaml:"bits"`
	Samples          int        `yaml:"samples,omitempty"`
	AveragePower     float64    `yaml:"average_power,omitempty"`
	SignalMean       float64    `yaml:"signal_mean,omitempty"`
	Errors           int        `yaml:"errors"`
	BER              float64    `yaml:"ber"`
	EstimatedSNR     float64    `yaml:"estimated_snr_db,omitempty"`
	PeakFrequency    float64    `yaml:"peak_frequency,omitempty"`
	Duration         string     `yaml:"duration,omitempty"`
	Sweep            []Point    `yaml:"sweep,omitempty"`
}

// Report summarises the outcome.
func (o *Outcome) Report() Report {
	return Report{
		Scheme:           o.Params.Scheme,
		CarrierFrequency: o.Params.Fc,
		SamplesPerPeriod: o.Params.Mpp,
		SNR:              o.Params.SNR,
		Seed:             o.Params.Seed,
		Bits:             o.BER.Total,
		Samples:          len(o.Waveform.Samples),
		AveragePower:     o.Waveform.Power,
		SignalMean:       o.SignalMean,
		Errors:           o.BER.Errors,
		BER:              o.BER.BER,
		EstimatedSNR:     o.Demod.EstimatedSNR,
		PeakFrequency:    o.PeakFrequency,
		Duration:         o.Elapsed.String(),
	}
}

// SweepReport summarises a sweep. Errors and BER are pooled over every trial.
func SweepReport(p Params, bits int, points []Point) Report {
	r := Report{
		Scheme:           p.Scheme,
		CarrierFrequency: p.Fc,
		SamplesPerPeriod: p.Mpp,
		SNR:              p.SNR,
		Seed:             p.Seed,
		Bits:             bits,
		Sweep:            points,
	}
	var total int
	for _, pt := range points {
		r.Errors += pt.Errors
		total += pt.Bits
	}
	if total > 0 {
		r.BER = float64(r.Errors) / float64(total)
	}
	return r
}

// WriteReport writes r to path as YAML.
func WriteReport(path string, r Report) error {
	out, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("sim: encoding report: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("sim: writing report: %w", err)
	}
	return nil
}
