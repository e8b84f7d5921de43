package audio

import (
	"fmt"
	"math"

	"github.com/maxhawkins/go-webrtcvad"

	"github.com/MrWong99/earshot/pkg/tokenizer"
)

// WebRTCValidator classifies frames with the WebRTC voice activity detector
// instead of plain energy thresholding. It only accepts mono 16-bit PCM at
// 8, 16, 32 or 48 kHz with 10, 20 or 30 ms windows; frames the detector
// cannot handle fall back to an RMS decision so that the validator stays
// total.
type WebRTCValidator struct {
	vad          *webrtcvad.VAD
	samplingRate int
	rmsThreshold float64
}

// NewWebRTCValidator creates a validator for mono 16-bit frames at the given
// rate. aggressiveness ranges from 0 (least) to 3 (most aggressive).
// rmsThreshold is the linear RMS used for the fallback decision.
func NewWebRTCValidator(samplingRate, aggressiveness int, rmsThreshold float64) (*WebRTCValidator, error) {
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("audio: create webrtc vad: %w", err)
	}
	if err := vad.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("audio: set webrtc vad mode %d: %w", aggressiveness, err)
	}
	return &WebRTCValidator{
		vad:          vad,
		samplingRate: samplingRate,
		rmsThreshold: rmsThreshold,
	}, nil
}

// IsValid reports whether the detector classifies the frame as speech.
func (v *WebRTCValidator) IsValid(frame []byte) bool {
	if ok, err := v.vad.Process(v.samplingRate, frame); err == nil {
		return ok
	}
	return v.rmsIsActive(frame)
}

// rmsIsActive is the fallback for frame sizes the detector rejects.
func (v *WebRTCValidator) rmsIsActive(frame []byte) bool {
	samples, err := ToFloat64(frame, 2)
	if err != nil || len(samples) == 0 {
		return false
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum/float64(len(samples))) > v.rmsThreshold
}

var _ tokenizer.Validator[[]byte] = (*WebRTCValidator)(nil)
