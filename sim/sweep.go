package sim

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/linksim/demod"
	"github.com/jrwynneiii/linksim/errs"
	"github.com/jrwynneiii/linksim/mod"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Point is the BER measured at one SNR, averaged over the trials.
type Point struct {
	SNR          float64 `yaml:"snr_db"`
	Trials       int     `yaml:"trials"`
	Errors       int     `yaml:"errors"`
	Bits         int     `yaml:"bits"`
	BER          float64 `yaml:"ber"`
	MinBER       float64 `yaml:"min_ber"`
	MaxBER       float64 `yaml:"max_ber"`
	EstimatedSNR float64 `yaml:"estimated_snr_db"`
}

// SweepOptions controls the fan-out of a sweep.
type SweepOptions struct {
	SNRs   []float64
	Trials int
	// Workers bounds concurrent trials; 0 means GOMAXPROCS
	Workers int
	// OnPoint, when set, is called once per SNR as soon as all of its trials
	// finish. Calls are serialised.
	OnPoint func(Point)
}

type trial struct {
	errors int
	bits   int
	ber    float64
	snr    float64
}

// Sweep modulates bits once and runs Trials independent noise draws at every
// SNR. Trial i of the sweep uses channel seed Params.Seed+i. The returned
// points are ordered by increasing SNR.
func Sweep(ctx context.Context, p Params, bits []uint8, opts SweepOptions) ([]Point, error) {
	if len(opts.SNRs) == 0 {
		return nil, fmt.Errorf("sim: sweep needs at least one SNR: %w", errs.ErrInvalidInput)
	}
	if opts.Trials < 1 {
		return nil, fmt.Errorf("sim: sweep needs at least one trial, got %d: %w", opts.Trials, errs.ErrInvalidInput)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	w, err := mod.Modulate(p.Scheme, bits, p.Fc, p.Mpp)
	if err != nil {
		return nil, err
	}

	// Trials only need the bits, so each skips the product trace
	d, err := demod.New(p.Scheme, w.Carrier)
	if err != nil {
		return nil, err
	}
	d.SkipProduct = true

	seed := p.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	results := make([]trial, len(opts.SNRs)*opts.Trials)
	remaining := make([]int, len(opts.SNRs))
	for i := range remaining {
		remaining[i] = opts.Trials
	}
	var mu sync.Mutex

	log.Debugf("[sim] Sweeping %d SNRs x %d trials on %d workers", len(opts.SNRs), opts.Trials, workers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for idx := range results {
		if gctx.Err() != nil {
			break
		}
		s := idx / opts.Trials
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tp := p
			tp.SNR = opts.SNRs[s]
			o, err := receive(tp, w, bits, newChannel(seed, uint64(idx)), d)
			if err != nil {
				return fmt.Errorf("sim: SNR %.1f dB trial %d: %w", tp.SNR, idx%opts.Trials, err)
			}
			results[idx] = trial{
				errors: o.BER.Errors,
				bits:   o.BER.Total,
				ber:    o.BER.BER,
				snr:    o.Demod.EstimatedSNR,
			}

			mu.Lock()
			defer mu.Unlock()
			remaining[s]--
			if remaining[s] == 0 && opts.OnPoint != nil {
				opts.OnPoint(aggregate(opts.SNRs[s], results[s*opts.Trials:(s+1)*opts.Trials]))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points := make([]Point, len(opts.SNRs))
	for s, snr := range opts.SNRs {
		points[s] = aggregate(snr, results[s*opts.Trials:(s+1)*opts.Trials])
	}
	slices.SortStableFunc(points, func(a, b Point) int {
		switch {
		case a.SNR < b.SNR:
			return -1
		case a.SNR > b.SNR:
			return 1
		}
		return 0
	})
	return points, nil
}

func aggregate(snr float64, trials []trial) Point {
	pt := Point{
		SNR:    snr,
		Trials: len(trials),
		MinBER: math.Inf(1),
		MaxBER: math.Inf(-1),
	}
	bers := make([]float64, len(trials))
	var estimates []float64
	for i, t := range trials {
		pt.Errors += t.errors
		pt.Bits += t.bits
		bers[i] = t.ber
		pt.MinBER = math.Min(pt.MinBER, t.ber)
		pt.MaxBER = math.Max(pt.MaxBER, t.ber)
		if !math.IsInf(t.snr, 0) && !math.IsNaN(t.snr) {
			estimates = append(estimates, t.snr)
		}
	}
	pt.BER = stat.Mean(bers, nil)
	pt.EstimatedSNR = math.Inf(1)
	if len(estimates) > 0 {
		pt.EstimatedSNR = stat.Mean(estimates, nil)
	}
	return pt
}
