package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/linksim/carrier"
	"github.com/jrwynneiii/linksim/config"
	"github.com/jrwynneiii/linksim/constellation"
	"github.com/jrwynneiii/linksim/mod"
	"github.com/jrwynneiii/linksim/sim"
	"github.com/jrwynneiii/linksim/source"
	"github.com/jrwynneiii/linksim/tui"
)

func loadImage(path string) (source.Pixels, []uint8) {
	img, err := source.Load(path)
	if err != nil {
		log.Fatalf("Could not load image: %v", err)
	}
	return img, source.ToBits(img)
}

func simulate(conf config.SimConf) {
	img, bits := loadImage(cli.Simulate.Image)
	p := conf.Params()
	log.Infof("Simulating %v", p)

	o, err := sim.Run(p, bits)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	log.Infof("Samples: %d (%.4f s at %.0f samples/s)", len(o.Waveform.Samples), o.Waveform.Duration(), o.Waveform.Carrier.SampleRate())
	log.Infof("Average power: %.4f", o.Waveform.Power)
	log.Infof("Mean of the first %d transmit samples: %.6f", sim.MeanSamples, o.SignalMean)
	log.Infof("Estimated SNR: %.2f dB", o.Demod.EstimatedSNR)
	log.Infof("Spectrum peak: %.1f Hz", o.PeakFrequency)
	log.Infof("There are %v", o.BER)
	log.Infof("Signal quality: %.2f%%", o.BER.SignalQuality())
	log.Infof("Duration: %v", o.Elapsed)

	recovered, err := source.FromBits(o.Demod.Bits, img.Height, img.Width)
	if err != nil {
		log.Fatalf("Could not rebuild image: %v", err)
	}
	if err := source.Save(cli.Simulate.Output, recovered); err != nil {
		log.Fatalf("Could not save recovered image: %v", err)
	}
	log.Infof("Wrote recovered image to %s", cli.Simulate.Output)

	if cli.Simulate.Report != "" {
		if err := sim.WriteReport(cli.Simulate.Report, o.Report()); err != nil {
			log.Fatalf("Could not write report: %v", err)
		}
		log.Infof("Wrote report to %s", cli.Simulate.Report)
	}
}

func sweep(conf config.SimConf) {
	_, bits := loadImage(cli.Sweep.Image)
	p := conf.Params()
	opts := conf.SweepOptions()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		points []sim.Point
		err    error
	)
	if cli.Sweep.Tui {
		points, err = tui.StartUI(ctx, p, bits, opts, conf.Tui)
	} else {
		opts.OnPoint = func(pt sim.Point) {
			log.Debugf("Finished %.1f dB: BER %.4f", pt.SNR, pt.BER)
		}
		log.Infof("Sweeping %v over %v dB, %d trials each", p, opts.SNRs, opts.Trials)
		points, err = sim.Sweep(ctx, p, bits, opts)
	}
	if errors.Is(err, context.Canceled) {
		log.Warn("Sweep cancelled")
		return
	}
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	for _, pt := range points {
		log.Infof("SNR %6.1f dB: %8d errors / %8d bits, BER %.4f (min %.4f, max %.4f), estimated SNR %.2f dB",
			pt.SNR, pt.Errors, pt.Bits, pt.BER, pt.MinBER, pt.MaxBER, pt.EstimatedSNR)
	}

	if cli.Sweep.Report != "" {
		if err := sim.WriteReport(cli.Sweep.Report, sim.SweepReport(p, len(bits), points)); err != nil {
			log.Fatalf("Could not write report: %v", err)
		}
		log.Infof("Wrote report to %s", cli.Sweep.Report)
	}
}

func showConstellation(conf config.SimConf) {
	table := constellation.Default()
	for pattern, pt := range table {
		p := constellation.Pattern(pattern)
		log.Infof("%v -> %v (energy %.0f)", p, pt, pt.Energy())
	}
	log.Infof("Average symbol energy: %.1f", constellation.AverageEnergy())

	p := conf.Params()
	c, err := carrier.Generate(p.Fc, p.Mpp)
	if err != nil {
		log.Fatalf("Invalid carrier: %v", err)
	}
	log.Infof("Carrier: %.1f Hz, %d samples/period, %.0f samples/s", c.Fc, c.Mpp, c.SampleRate())
	log.Infof("Carrier energy per period: sin %.3f, cos %.3f", carrier.Energy(c.Sin), carrier.Energy(c.Cos))
	for _, s := range []mod.Scheme{mod.BPSK, mod.QAM16} {
		log.Infof("%v: %d bits/symbol, at least %d samples/period", s, s.BitsPerSymbol(), s.MinMpp())
	}
}

func main() {
	flags := kong.Parse(&cli, kong.Name("linksim"), kong.Description("Passband BPSK and 16-QAM link simulator"))
	if cli.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if cli.Profile {
		prof, err := os.Create("./cpu.pprof")
		if err != nil {
			panic(err)
		}
		pprof.StartCPUProfile(prof)
		defer pprof.StopCPUProfile()
	}

	k, err := config.Load(cli.Config, cli.Set)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	conf, err := config.Sim(k)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	log.Debugf("Resolved config: %+v", conf)

	switch flags.Command() {
	case "simulate <image>":
		simulate(conf)
	case "sweep <image>":
		sweep(conf)
	case "constellation":
		showConstellation(conf)
	default:
		log.Info("Command not recognized")
	}
}
