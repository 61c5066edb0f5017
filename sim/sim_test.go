package sim

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrwynneiii/linksim/errs"
	"github.com/jrwynneiii/linksim/mod"
	"github.com/jrwynneiii/linksim/source"
	"gopkg.in/yaml.v3"
)

func randomBits(n int, seed uint64) []uint8 {
	rng := rand.New(rand.NewPCG(seed, seed))
	bits := make([]uint8, n)
	for i := range bits {
		bits[i] = uint8(rng.IntN(2))
	}
	return bits
}

func TestRunBPSKScenario(t *testing.T) {
	p := Params{Scheme: mod.BPSK, Fc: 5000, Mpp: 20, SNR: 40, Seed: 1}
	o, err := Run(p, []uint8{1, 0, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{1, 0, 1, 1}
	for i := range want {
		if o.Demod.Bits[i] != want[i] {
			t.Fatalf("recovered %v, want %v", o.Demod.Bits, want)
		}
	}
	if o.BER.Errors != 0 || o.BER.BER != 0 {
		t.Errorf("got %v", o.BER)
	}
	if len(o.Received) != len(o.Waveform.Samples) {
		t.Errorf("received %d samples, sent %d", len(o.Received), len(o.Waveform.Samples))
	}
}

func TestRunNoiseless(t *testing.T) {
	for _, scheme := range []mod.Scheme{mod.BPSK, mod.QAM16} {
		t.Run(scheme.String(), func(t *testing.T) {
			p := Params{Scheme: scheme, Fc: 5000, Mpp: 20, SNR: math.Inf(1)}
			o, err := Run(p, randomBits(1024, 2))
			if err != nil {
				t.Fatal(err)
			}
			if o.BER.Errors != 0 {
				t.Errorf("noiseless %v: %v", scheme, o.BER)
			}
			// BPSK keys every carrier period so its main lobe spans (0, 2fc)
			if o.PeakFrequency <= 0 || o.PeakFrequency >= 2*p.Fc {
				t.Errorf("spectrum peak %v Hz, carrier %v Hz", o.PeakFrequency, p.Fc)
			}
		})
	}
}

func TestImageRoundTrip(t *testing.T) {
	img := source.Pixels{Height: 2, Width: 2, Data: []uint8{
		255, 0, 0, 0, 255, 0,
		0, 0, 255, 12, 200, 99,
	}}
	bits := source.ToBits(img)

	for _, scheme := range []mod.Scheme{mod.BPSK, mod.QAM16} {
		t.Run(scheme.String(), func(t *testing.T) {
			o, err := Run(Params{Scheme: scheme, Fc: 5000, Mpp: 20, SNR: 40, Seed: 3}, bits)
			if err != nil {
				t.Fatal(err)
			}
			back, err := source.FromBits(o.Demod.Bits, img.Height, img.Width)
			if err != nil {
				t.Fatal(err)
			}
			for i := range img.Data {
				if back.Data[i] != img.Data[i] {
					t.Fatalf("value %d: want %d, got %d", i, img.Data[i], back.Data[i])
				}
			}
		})
	}
}

func TestRunQAM16RejectsPartialSymbol(t *testing.T) {
	o, err := Run(Params{Scheme: mod.QAM16, Fc: 5000, Mpp: 20, SNR: 10}, []uint8{1, 0, 1, 1, 0, 1})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if o != nil {
		t.Errorf("expected no outcome")
	}
}

func TestSweepBERFallsWithSNR(t *testing.T) {
	tests := []struct {
		scheme mod.Scheme
		snrs   []float64
		// lowest acceptable BER at the lowest SNR
		floor float64
	}{
		{mod.BPSK, []float64{0, -15, -5, -10}, 0.1},
		{mod.QAM16, []float64{10, -10, 0, 5, -5}, 0.2},
	}

	bits := randomBits(4000, 4)
	for _, tt := range tests {
		t.Run(tt.scheme.String(), func(t *testing.T) {
			p := Params{Scheme: tt.scheme, Fc: 5000, Mpp: 20, Seed: 99}

			var seen []Point
			points, err := Sweep(context.Background(), p, bits, SweepOptions{
				SNRs:    tt.snrs,
				Trials:  3,
				Workers: 4,
				OnPoint: func(pt Point) { seen = append(seen, pt) },
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(points) != len(tt.snrs) || len(seen) != len(tt.snrs) {
				t.Fatalf("got %d points, %d callbacks", len(points), len(seen))
			}

			for i, pt := range points {
				t.Logf("SNR %6.1f dB: BER %.4f (%d errors, estimated SNR %.1f dB)", pt.SNR, pt.BER, pt.Errors, pt.EstimatedSNR)
				if pt.Trials != 3 || pt.Bits != 3*len(bits) {
					t.Errorf("point %d: %d trials, %d bits", i, pt.Trials, pt.Bits)
				}
				if pt.MinBER > pt.BER || pt.BER > pt.MaxBER {
					t.Errorf("point %d: mean %v outside [%v, %v]", i, pt.BER, pt.MinBER, pt.MaxBER)
				}
				if i == 0 {
					continue
				}
				if points[i-1].SNR >= pt.SNR {
					t.Errorf("points not ordered by SNR: %v then %v", points[i-1].SNR, pt.SNR)
				}
				if pt.BER > points[i-1].BER {
					t.Errorf("BER rose from %v at %v dB to %v at %v dB", points[i-1].BER, points[i-1].SNR, pt.BER, pt.SNR)
				}
			}
			if points[0].BER < tt.floor {
				t.Errorf("BER at %v dB = %v, expected heavy errors", points[0].SNR, points[0].BER)
			}
		})
	}
}

func TestSignalMean(t *testing.T) {
	ones := make([]uint8, 100)
	for i := range ones {
		ones[i] = 1
	}

	// 200 samples at 20 per period is ten whole carrier periods
	o, err := Run(Params{Scheme: mod.BPSK, Fc: 5000, Mpp: 20, SNR: math.Inf(1)}, ones)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(o.SignalMean) > 1e-12 {
		t.Errorf("mean over whole periods = %v, want 0", o.SignalMean)
	}
	if o.Report().SignalMean != o.SignalMean {
		t.Errorf("report mean %v, outcome mean %v", o.Report().SignalMean, o.SignalMean)
	}

	// At 3 per period the window ends two samples into a period: sin(pi/3) + sin(pi)
	o, err = Run(Params{Scheme: mod.BPSK, Fc: 5000, Mpp: 3, SNR: math.Inf(1)}, ones)
	if err != nil {
		t.Fatal(err)
	}
	want := math.Sin(math.Pi/3) / MeanSamples
	if math.Abs(o.SignalMean-want) > 1e-9 {
		t.Errorf("mean over a partial period = %v, want %v", o.SignalMean, want)
	}
}

func TestSweepSeeded(t *testing.T) {
	bits := randomBits(512, 5)
	p := Params{Scheme: mod.QAM16, Fc: 5000, Mpp: 8, Seed: 1234}
	opts := SweepOptions{SNRs: []float64{-5, 0}, Trials: 2}

	a, err := Sweep(context.Background(), p, bits, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Sweep(context.Background(), p, bits, opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i].Errors != b[i].Errors {
			t.Errorf("seeded sweeps differ at %v dB: %d vs %d errors", a[i].SNR, a[i].Errors, b[i].Errors)
		}
	}

	// The first trial of a sweep draws the same noise as a single run
	p.SNR = -5
	o, err := Run(p, bits)
	if err != nil {
		t.Fatal(err)
	}
	one, err := Sweep(context.Background(), p, bits, SweepOptions{SNRs: []float64{-5}, Trials: 1})
	if err != nil {
		t.Fatal(err)
	}
	if o.BER.Errors != one[0].Errors {
		t.Errorf("run had %d errors, sweep trial %d", o.BER.Errors, one[0].Errors)
	}
}

func TestSweepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sweep(ctx, Params{Scheme: mod.BPSK, Fc: 5000, Mpp: 20}, randomBits(64, 6), SweepOptions{SNRs: []float64{0, 5}, Trials: 2})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSweepInvalid(t *testing.T) {
	p := Params{Scheme: mod.BPSK, Fc: 5000, Mpp: 20}
	bits := []uint8{1, 0}
	if _, err := Sweep(context.Background(), p, bits, SweepOptions{Trials: 1}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("no SNRs: expected ErrInvalidInput, got %v", err)
	}
	if _, err := Sweep(context.Background(), p, bits, SweepOptions{SNRs: []float64{0}}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("no trials: expected ErrInvalidInput, got %v", err)
	}
	p.Mpp = 1
	if _, err := Sweep(context.Background(), p, bits, SweepOptions{SNRs: []float64{0}, Trials: 1}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("bad mpp: expected ErrInvalidInput, got %v", err)
	}
}

func TestWriteReport(t *testing.T) {
	o, err := Run(Params{Scheme: mod.QAM16, Fc: 5000, Mpp: 20, SNR: 30, Seed: 8}, randomBits(64, 7))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "report.yaml")
	if err := WriteReport(path, o.Report()); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var back Report
	if err := yaml.Unmarshal(raw, &back); err != nil {
		t.Fatalf("report is not valid YAML: %v\n%s", err, raw)
	}
	if back.Scheme != mod.QAM16 || back.Bits != 64 || back.SamplesPerPeriod != 20 || back.Seed != 8 {
		t.Errorf("report round trip lost fields: %+v", back)
	}
	if math.Abs(back.AveragePower-o.Waveform.Power) > 1e-9 {
		t.Errorf("average power %v, want %v", back.AveragePower, o.Waveform.Power)
	}

	sr := SweepReport(o.Params, 64, []Point{{SNR: 0, Errors: 4, Bits: 128}, {SNR: 5, Errors: 0, Bits: 128}})
	if sr.Errors != 4 || sr.BER != 4.0/256 {
		t.Errorf("sweep report pooled %d errors, BER %v", sr.Errors, sr.BER)
	}
}
