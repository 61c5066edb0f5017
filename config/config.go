// Package config layers the simulator settings: built-in defaults, an HCL or
// YAML file, LINKSIM_ environment variables and finally --set overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/linksim/errs"
	"github.com/jrwynneiii/linksim/mod"
	"github.com/jrwynneiii/linksim/sim"
	"github.com/knadh/koanf/parsers/hcl"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "LINKSIM_"

type LinkConf struct {
	Scheme           string  `koanf:"scheme"`
	CarrierFrequency float64 `koanf:"carrier_frequency"`
	SamplesPerPeriod int     `koanf:"samples_per_period"`
}

type ChannelConf struct {
	SNR  float64 `koanf:"snr_db"`
	Seed uint64  `koanf:"seed"`
}

type SweepConf struct {
	SNRs    []float64 `koanf:"snr_db"`
	Trials  int       `koanf:"trials"`
	Workers int       `koanf:"workers"`
}

type TuiConf struct {
	RefreshMs       int     `koanf:"refresh_ms"`
	PlotSamples     int     `koanf:"plot_samples"`
	BERWarnPct      float64 `koanf:"ber_warn_pct"`
	BERCritPct      float64 `koanf:"ber_crit_pct"`
	EnableLogOutput bool    `koanf:"enable_log_output"`
}

// SimConf is the whole resolved configuration.
type SimConf struct {
	Link    LinkConf    `koanf:"link"`
	Channel ChannelConf `koanf:"channel"`
	Sweep   SweepConf   `koanf:"sweep"`
	Tui     TuiConf     `koanf:"tui"`
}

// Defaults returns the built-in configuration as flat koanf keys.
func Defaults() map[string]any {
	return map[string]any{
		"link.scheme":             "bpsk",
		"link.carrier_frequency":  5000.0,
		"link.samples_per_period": 20,
		"channel.snr_db":          -5.0,
		"channel.seed":            0,
		"sweep.snr_db":            []float64{-15, -10, -5, 0, 5},
		"sweep.trials":            3,
		"sweep.workers":           0,
		"tui.refresh_ms":          250,
		"tui.plot_samples":        600,
		"tui.ber_warn_pct":        1.0,
		"tui.ber_crit_pct":        10.0,
		"tui.enable_log_output":   true,
	}
}

// FindConfigPath returns the first config file that exists, or "" if none do.
func FindConfigPath() string {
	paths := []string{"/etc/linksim/config.hcl"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "linksim", "config.hcl"))
	}
	paths = append(paths, "./config.hcl")
	for _, path := range paths {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			log.Infof("Found config file: %s", path)
			return path
		}
	}
	log.Debug("Config file not found, using defaults")
	return ""
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	}
	return hcl.Parser(true)
}

// listValue splits comma separated values so list keys such as sweep.snr_db
// can be set from a single string.
func listValue(v string) any {
	if !strings.Contains(v, ",") {
		return v
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Load builds the layered configuration. An empty path falls back to
// FindConfigPath; an explicit path that cannot be read is an error.
func Load(path string, overrides map[string]string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = FindConfigPath()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			if explicit {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
			log.Errorf("Could not read config file: %v", err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
			k = strings.Replace(key, "_", ".", 1)
			log.Debugf("Found config env var: %s=%v", k, v)
			return k, listValue(v)
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	if len(overrides) > 0 {
		set := make(map[string]any, len(overrides))
		for key, v := range overrides {
			set[key] = listValue(v)
		}
		if err := k.Load(confmap.Provider(set, "."), nil); err != nil {
			return nil, fmt.Errorf("config: applying overrides: %w", err)
		}
	}
	return k, nil
}

// Sim unmarshals and validates the configuration held in k.
func Sim(k *koanf.Koanf) (SimConf, error) {
	var c SimConf
	if err := k.Unmarshal("", &c); err != nil {
		return SimConf{}, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return SimConf{}, err
	}
	return c, nil
}

func (c SimConf) Validate() error {
	scheme, err := mod.ParseScheme(c.Link.Scheme)
	if err != nil {
		return fmt.Errorf("config: link.scheme: %w", err)
	}
	if c.Link.CarrierFrequency <= 0 {
		return fmt.Errorf("config: link.carrier_frequency must be positive, got %v: %w", c.Link.CarrierFrequency, errs.ErrInvalidInput)
	}
	if c.Link.SamplesPerPeriod < scheme.MinMpp() {
		return fmt.Errorf("config: link.samples_per_period must be at least %d for %v, got %d: %w", scheme.MinMpp(), scheme, c.Link.SamplesPerPeriod, errs.ErrInvalidInput)
	}
	if len(c.Sweep.SNRs) == 0 {
		return fmt.Errorf("config: sweep.snr_db is empty: %w", errs.ErrInvalidInput)
	}
	if c.Sweep.Trials < 1 {
		return fmt.Errorf("config: sweep.trials must be at least 1, got %d: %w", c.Sweep.Trials, errs.ErrInvalidInput)
	}
	if c.Sweep.Workers < 0 {
		return fmt.Errorf("config: sweep.workers must not be negative, got %d: %w", c.Sweep.Workers, errs.ErrInvalidInput)
	}
	if c.Tui.RefreshMs <= 0 {
		return fmt.Errorf("config: tui.refresh_ms must be positive, got %d: %w", c.Tui.RefreshMs, errs.ErrInvalidInput)
	}
	if c.Tui.BERWarnPct > c.Tui.BERCritPct {
		return fmt.Errorf("config: tui.ber_warn_pct %v is above tui.ber_crit_pct %v: %w", c.Tui.BERWarnPct, c.Tui.BERCritPct, errs.ErrInvalidInput)
	}
	return nil
}

// Params converts the link and channel sections into run parameters.
func (c SimConf) Params() sim.Params {
	// Validate has already parsed the scheme
	scheme, _ := mod.ParseScheme(c.Link.Scheme)
	return sim.Params{
		Scheme: scheme,
		Fc:     c.Link.CarrierFrequency,
		Mpp:    c.Link.SamplesPerPeriod,
		SNR:    c.Channel.SNR,
		Seed:   c.Channel.Seed,
	}
}

func (c SimConf) SweepOptions() sim.SweepOptions {
	return sim.SweepOptions{
		SNRs:    c.Sweep.SNRs,
		Trials:  c.Sweep.Trials,
		Workers: c.Sweep.Workers,
	}
}
