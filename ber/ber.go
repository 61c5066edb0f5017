package ber

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/linksim/errs"
)

// Report is the outcome of comparing a transmitted and a recovered bit
// sequence.
type Report struct {
	Errors int     `yaml:"errors"`
	Total  int     `yaml:"total_bits"`
	BER    float64 `yaml:"ber"`
	// Positions of the first few differing bits, for inspection
	FirstErrors []int `yaml:"first_errors,omitempty"`
}

// MaxRecordedErrors caps Report.FirstErrors.
const MaxRecordedErrors = 16

// Evaluate counts the positions where tx and rx differ.
func Evaluate(tx, rx []uint8) (Report, error) {
	if len(tx) != len(rx) {
		return Report{}, fmt.Errorf("ber: transmitted %d bits but recovered %d: %w", len(tx), len(rx), errs.ErrLengthMismatch)
	}
	if len(tx) == 0 {
		return Report{}, fmt.Errorf("ber: nothing to compare: %w", errs.ErrInvalidInput)
	}

	r := Report{Total: len(tx)}
	for i := range tx {
		if tx[i] != rx[i] {
			r.Errors++
			if len(r.FirstErrors) < MaxRecordedErrors {
				r.FirstErrors = append(r.FirstErrors, i)
			}
		}
	}
	r.BER = float64(r.Errors) / float64(r.Total)
	log.Debugf("[ber] %d errors in %d bits", r.Errors, r.Total)
	return r, nil
}

// SignalQuality is the share of bits that came through intact, in percent.
func (r Report) SignalQuality() float64 {
	q := 100 * (1 - r.BER)
	if q > 100 {
		q = 100
	} else if q < 0 {
		q = 0
	}
	return q
}

func (r Report) String() string {
	return fmt.Sprintf("%d errors, for a BER of %0.4f", r.Errors, r.BER)
}
