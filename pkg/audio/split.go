package audio

import (
	"fmt"
	"math"

	"github.com/MrWong99/earshot/pkg/tokenizer"
)

// Defaults for [SplitConfig] fields left zero.
const (
	DefaultAnalysisWindow  = 0.05
	DefaultMinDur          = 0.2
	DefaultMaxDur          = 5
	DefaultMaxSilence      = 0.3
	DefaultEnergyThreshold = 50
)

// durEpsilon absorbs floating-point error when converting durations to whole
// window counts with floor.
const durEpsilon = 1e-14

// SplitConfig parameterises [Split] and [SplitFunc]. Durations are in
// seconds; zero values select the package defaults above.
type SplitConfig struct {
	// MinDur is the minimum duration of a detected event.
	MinDur float64

	// MaxDur is the maximum duration of a detected event; longer activity is
	// truncated into consecutive events.
	MaxDur float64

	// MaxSilence is the maximum duration of continuous silence tolerated
	// inside an event.
	MaxSilence float64

	// AnalysisWindow is the duration of one analysis window.
	AnalysisWindow float64

	// HopDur is the advance between analysis windows. Zero means no overlap.
	HopDur float64

	// DropTrailingSilence removes trailing silence from delivered events.
	DropTrailingSilence bool

	// StrictMinDur rejects events shorter than MinDur even when they
	// continue an event truncated at MaxDur.
	StrictMinDur bool

	// EnergyThreshold is the log-energy cutoff of the default validator.
	EnergyThreshold float64

	// UseChannel selects the channel reduction for the default validator.
	UseChannel ChannelMode

	// ChannelIndex is the channel used when UseChannel is [ChannelIndex].
	ChannelIndex int

	// Validator overrides the default energy validator when non-nil.
	Validator tokenizer.Validator[[]byte]
}

func (c *SplitConfig) applyDefaults() {
	if c.AnalysisWindow == 0 {
		c.AnalysisWindow = DefaultAnalysisWindow
	}
	if c.MinDur == 0 {
		c.MinDur = DefaultMinDur
	}
	if c.MaxDur == 0 {
		c.MaxDur = DefaultMaxDur
	}
	if c.MaxSilence == 0 {
		c.MaxSilence = DefaultMaxSilence
	}
	if c.EnergyThreshold == 0 {
		c.EnergyThreshold = DefaultEnergyThreshold
	}
}

// durToWindows converts a duration to a window count using the given
// rounding function.
func durToWindows(dur, window float64, round func(float64) float64, eps float64) (int, error) {
	if dur < 0 {
		return 0, fmt.Errorf("audio: duration must be >= 0, given: %g", dur)
	}
	return int(round(dur/window + eps)), nil
}

// Split detects audio events on src and returns them in order. It is the
// batch entry point; see [SplitFunc] for streaming delivery.
func Split(src Source, cfg SplitConfig) ([]Detection, error) {
	var out []Detection
	err := SplitFunc(src, cfg, func(d Detection) {
		out = append(out, d)
	})
	return out, err
}

// SplitFunc detects audio events on src and invokes fn for each one as soon
// as it is finalized, in increasing start order. It assembles the framing
// reader, validator and tokenizer from cfg and drives them to end of
// stream. No more than one in-progress event is buffered.
func SplitFunc(src Source, cfg SplitConfig, fn func(Detection)) error {
	cfg.applyDefaults()
	if cfg.MinDur <= 0 {
		return fmt.Errorf("audio: min duration must be > 0, given: %g", cfg.MinDur)
	}
	if cfg.MaxDur <= 0 {
		return fmt.Errorf("audio: max duration must be > 0, given: %g", cfg.MaxDur)
	}
	if cfg.AnalysisWindow <= 0 {
		return fmt.Errorf("audio: analysis window must be > 0, given: %g", cfg.AnalysisWindow)
	}

	reader, err := NewFrameReaderDur(src, cfg.AnalysisWindow, cfg.HopDur)
	if err != nil {
		return err
	}

	minLength, err := durToWindows(cfg.MinDur, cfg.AnalysisWindow, math.Ceil, 0)
	if err != nil {
		return err
	}
	maxLength, err := durToWindows(cfg.MaxDur, cfg.AnalysisWindow, math.Floor, durEpsilon)
	if err != nil {
		return err
	}
	maxSilence, err := durToWindows(cfg.MaxSilence, cfg.AnalysisWindow, math.Floor, durEpsilon)
	if err != nil {
		return err
	}
	if minLength > maxLength {
		return fmt.Errorf("audio: min duration %g s spans %d analysis window(s), more than max duration %g s (%d window(s))",
			cfg.MinDur, minLength, cfg.MaxDur, maxLength)
	}
	if maxSilence >= maxLength {
		return fmt.Errorf("audio: max silence %g s spans %d analysis window(s), not below max duration %g s (%d window(s))",
			cfg.MaxSilence, maxSilence, cfg.MaxDur, maxLength)
	}

	validator := cfg.Validator
	if validator == nil {
		validator, err = NewEnergyValidator(cfg.EnergyThreshold, src.Format(), cfg.UseChannel, cfg.ChannelIndex)
		if err != nil {
			return err
		}
	}

	var mode tokenizer.Mode
	if cfg.DropTrailingSilence {
		mode |= tokenizer.DropTrailingSilence
	}
	if cfg.StrictMinDur {
		mode |= tokenizer.StrictMinLength
	}

	tok, err := tokenizer.New[[]byte](validator, tokenizer.Config{
		MinLength:            minLength,
		MaxLength:            maxLength,
		MaxContinuousSilence: maxSilence,
		Mode:                 mode,
	})
	if err != nil {
		return err
	}

	hopDur := reader.HopDur()
	format := src.Format()
	return tok.TokenizeFunc(reader, func(ev tokenizer.Event[[]byte]) {
		var data []byte
		for _, frame := range ev.Frames {
			data = append(data, frame...)
		}
		region, rerr := NewRegion(data, format)
		if rerr != nil {
			// Frames come sample-aligned off the reader; keep delivering.
			return
		}
		start := float64(ev.Start) * hopDur
		fn(Detection{
			Region:     region,
			StartFrame: ev.Start,
			EndFrame:   ev.End,
			Start:      start,
			End:        start + region.Duration(),
		})
	})
}
