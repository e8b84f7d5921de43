package audio

import (
	"github.com/MrWong99/earshot/pkg/tokenizer"
)

// EnergyValidator classifies a PCM analysis window as valid when its log
// mean-square energy reaches a threshold. It is the reference
// [tokenizer.Validator] for audio activity detection.
//
// With [ChannelAny] reduction the energy is computed per channel and the
// maximum decides, so activity on any channel validates the frame. With
// [ChannelMix] or [ChannelIndex] the reduced channel decides.
//
// IsValid is pure and deterministic; the threshold may be changed between
// tokenization runs via [EnergyValidator.SetThreshold].
type EnergyValidator struct {
	threshold float64
	selector  *ChannelSelector
}

// NewEnergyValidator creates a validator for frames in the given format.
func NewEnergyValidator(threshold float64, format Format, mode ChannelMode, channelIndex int) (*EnergyValidator, error) {
	sel, err := NewChannelSelector(format, mode, channelIndex)
	if err != nil {
		return nil, err
	}
	return &EnergyValidator{threshold: threshold, selector: sel}, nil
}

// SetThreshold replaces the energy threshold. It must not be called while a
// tokenization run is in progress.
func (v *EnergyValidator) SetThreshold(threshold float64) { v.threshold = threshold }

// Threshold returns the current energy threshold.
func (v *EnergyValidator) Threshold() float64 { return v.threshold }

// IsValid reports whether the frame's energy reaches the threshold.
// Validators are total: a malformed frame is reported as invalid rather
// than failing the run.
func (v *EnergyValidator) IsValid(frame []byte) bool {
	if v.selector.Mode() == ChannelAny {
		channels, err := v.selector.Split(frame)
		if err != nil {
			return false
		}
		for _, ch := range channels {
			if Energy(ch) >= v.threshold {
				return true
			}
		}
		return false
	}
	samples, err := v.selector.Select(frame)
	if err != nil {
		return false
	}
	return Energy(samples) >= v.threshold
}

var _ tokenizer.Validator[[]byte] = (*EnergyValidator)(nil)
