// Package config provides the configuration schema, loader and validation
// for the earshot audio activity detection tool.
package config

import (
	"fmt"
	"strconv"

	"github.com/MrWong99/earshot/pkg/audio"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ValidatorKind selects the frame validator implementation.
type ValidatorKind string

const (
	// ValidatorEnergy is the log-energy threshold validator.
	ValidatorEnergy ValidatorKind = "energy"

	// ValidatorWebRTC uses the WebRTC voice activity detector.
	ValidatorWebRTC ValidatorKind = "webrtc"
)

// IsValid reports whether v is a recognised validator kind.
func (v ValidatorKind) IsValid() bool {
	return v == ValidatorEnergy || v == ValidatorWebRTC
}

// Config is the root configuration structure, typically loaded from a YAML
// file via [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Input     InputConfig     `yaml:"input"`
	Detection DetectionConfig `yaml:"detection"`
	Output    OutputConfig    `yaml:"output"`
	Store     StoreConfig     `yaml:"store"`
}

// ServerConfig holds the optional observability endpoint and logging
// settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for health, metrics and the live
	// detection feed (e.g. ":8080"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// InputConfig describes where audio comes from and its PCM layout.
type InputConfig struct {
	// Path is the input file. "-" reads raw PCM from standard input; empty
	// captures from the default microphone.
	Path string `yaml:"path"`

	// Format forces the container type ("wav" or "raw"). Empty guesses from
	// the file extension.
	Format string `yaml:"format"`

	// SamplingRate, SampleWidth and Channels describe raw input. They are
	// ignored for WAV files, whose header wins.
	SamplingRate int `yaml:"sampling_rate"`
	SampleWidth  int `yaml:"sample_width"`
	Channels     int `yaml:"channels"`

	// UseChannel selects the channel reduction before validation: "any"
	// (default), "mix"/"avg"/"average", or a channel index.
	UseChannel string `yaml:"use_channel"`

	// MaxRead caps the amount of audio read, in seconds. Zero reads to end
	// of stream; it is how a microphone capture is bounded.
	MaxRead float64 `yaml:"max_read"`

	// ConvertRate resamples 16-bit input to this rate before framing.
	// Zero keeps the source rate.
	ConvertRate int `yaml:"convert_rate"`

	// ConvertChannels downmixes or duplicates 16-bit input to this channel
	// count (1 or 2) before framing. Zero keeps the source layout.
	ConvertChannels int `yaml:"convert_channels"`

	// Record keeps the whole stream in memory so it can be saved or
	// rewound. Implied by output.save_stream_as.
	Record bool `yaml:"record"`
}

// DetectionConfig carries the tokenization parameters, all durations in
// seconds. Zero values select the defaults of pkg/audio.
type DetectionConfig struct {
	AnalysisWindow      float64       `yaml:"analysis_window"`
	HopDur              float64       `yaml:"hop_dur"`
	MinDur              float64       `yaml:"min_dur"`
	MaxDur              float64       `yaml:"max_dur"`
	MaxSilence          float64       `yaml:"max_silence"`
	DropTrailingSilence bool          `yaml:"drop_trailing_silence"`
	StrictMinDur        bool          `yaml:"strict_min_dur"`
	Validator           ValidatorKind `yaml:"validator"`
	EnergyThreshold     float64       `yaml:"energy_threshold"`

	// VadAggressiveness tunes the webrtc validator (0 to 3).
	VadAggressiveness int `yaml:"vad_aggressiveness"`
}

// OutputConfig controls what happens with detections and the stream.
type OutputConfig struct {
	// Print enables the per-detection line on stdout.
	Print bool `yaml:"print"`

	// PrintFormat is the detection line template with {id}, {start}, {end}
	// and {duration} placeholders.
	PrintFormat string `yaml:"print_format"`

	// TimeFormat renders the time values of PrintFormat ("%S", "%I" or the
	// %h/%m/%s/%i directive set).
	TimeFormat string `yaml:"time_format"`

	// SaveDetectionsAs is a file-name template for per-detection audio
	// files; empty disables saving detections.
	SaveDetectionsAs string `yaml:"save_detections_as"`

	// SaveStreamAs is the file the whole captured stream is written to;
	// empty disables the capture.
	SaveStreamAs string `yaml:"save_stream_as"`
}

// StoreConfig configures detection persistence.
type StoreConfig struct {
	// PostgresDSN enables the PostgreSQL detection store when non-empty.
	PostgresDSN string `yaml:"postgres_dsn"`

	// SourceLabel tags persisted detections with the stream they came from.
	// Defaults to the input path.
	SourceLabel string `yaml:"source_label"`
}

// ChannelMode resolves the use_channel setting into the pkg/audio reduction
// mode and channel index.
func (c InputConfig) ChannelMode() (audio.ChannelMode, int, error) {
	switch c.UseChannel {
	case "", "any":
		return audio.ChannelAny, 0, nil
	case "mix", "avg", "average":
		return audio.ChannelMix, 0, nil
	}
	idx, err := strconv.Atoi(c.UseChannel)
	if err != nil {
		return 0, 0, fmt.Errorf("config: use_channel %q is not \"any\", \"mix\" or a channel index", c.UseChannel)
	}
	return audio.ChannelIndex, idx, nil
}
