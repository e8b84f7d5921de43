package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/earshot/internal/format"
)

// Defaults applied by Load for fields left empty.
const (
	DefaultPrintFormat = "{id} {start} {end}"
	DefaultTimeFormat  = "%S"
)

// Default returns a configuration with all defaults applied and nothing
// else set. Callers fill in at least the input before [Validate].
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Detection.Validator == "" {
		cfg.Detection.Validator = ValidatorEnergy
	}
	if cfg.Output.PrintFormat == "" {
		cfg.Output.PrintFormat = DefaultPrintFormat
	}
	if cfg.Output.TimeFormat == "" {
		cfg.Output.TimeFormat = DefaultTimeFormat
	}
	if cfg.Output.SaveStreamAs != "" {
		cfg.Input.Record = true
	}
	if cfg.Store.SourceLabel == "" {
		cfg.Store.SourceLabel = cfg.Input.Path
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Headerless inputs need an explicit PCM layout; WAV headers win.
	rawFile := cfg.Input.Path == "-" ||
		(cfg.Input.Path != "" && strings.EqualFold(cfg.Input.Format, "raw")) ||
		(cfg.Input.Path != "" && cfg.Input.Format == "" && !hasWavExt(cfg.Input.Path))
	if rawFile {
		if cfg.Input.SamplingRate <= 0 {
			errs = append(errs, fmt.Errorf("input.sampling_rate is required for raw input, given: %d", cfg.Input.SamplingRate))
		}
		switch cfg.Input.SampleWidth {
		case 1, 2, 4:
		default:
			errs = append(errs, fmt.Errorf("input.sample_width must be 1, 2 or 4 for raw input, given: %d", cfg.Input.SampleWidth))
		}
		if cfg.Input.Channels <= 0 {
			errs = append(errs, fmt.Errorf("input.channels is required for raw input, given: %d", cfg.Input.Channels))
		}
	}
	if cfg.Input.Path == "" {
		// Microphone capture: 16-bit samples are implied by the device
		// layer, but rate and channel count must be set.
		if cfg.Input.SamplingRate <= 0 {
			errs = append(errs, fmt.Errorf("input.sampling_rate is required for microphone capture"))
		}
		if cfg.Input.Channels <= 0 {
			errs = append(errs, fmt.Errorf("input.channels is required for microphone capture"))
		}
	}

	switch strings.ToLower(cfg.Input.Format) {
	case "", "wav", "wave", "raw":
	default:
		errs = append(errs, fmt.Errorf("input.format %q is invalid; valid values: wav, raw", cfg.Input.Format))
	}

	if _, _, err := cfg.Input.ChannelMode(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Input.MaxRead < 0 {
		errs = append(errs, fmt.Errorf("input.max_read must be >= 0, given: %g", cfg.Input.MaxRead))
	}
	if cfg.Input.ConvertRate < 0 {
		errs = append(errs, fmt.Errorf("input.convert_rate must be >= 0, given: %d", cfg.Input.ConvertRate))
	}
	if ch := cfg.Input.ConvertChannels; ch < 0 || ch > 2 {
		errs = append(errs, fmt.Errorf("input.convert_channels must be 0, 1 or 2, given: %d", ch))
	}

	if !cfg.Detection.Validator.IsValid() {
		errs = append(errs, fmt.Errorf("detection.validator %q is invalid; valid values: energy, webrtc", cfg.Detection.Validator))
	}
	if a := cfg.Detection.VadAggressiveness; a < 0 || a > 3 {
		errs = append(errs, fmt.Errorf("detection.vad_aggressiveness must be between 0 and 3, given: %d", a))
	}
	for name, v := range map[string]float64{
		"detection.analysis_window": cfg.Detection.AnalysisWindow,
		"detection.min_dur":         cfg.Detection.MinDur,
		"detection.max_dur":         cfg.Detection.MaxDur,
		"detection.max_silence":     cfg.Detection.MaxSilence,
		"detection.hop_dur":         cfg.Detection.HopDur,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0, given: %g", name, v))
		}
	}

	if _, err := format.MakeDurationFormatter(cfg.Output.TimeFormat); err != nil {
		errs = append(errs, fmt.Errorf("output.time_format: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// hasWavExt reports whether path names a WAV file by extension.
func hasWavExt(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".wave")
}
