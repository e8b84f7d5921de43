package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/earshot/internal/config"
	"github.com/MrWong99/earshot/pkg/audio"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: debug
input:
  path: "meeting.wav"
  use_channel: "mix"
  max_read: 60
detection:
  analysis_window: 0.05
  min_dur: 0.3
  max_dur: 8
  max_silence: 0.4
  drop_trailing_silence: true
  energy_threshold: 52
output:
  print: true
  save_detections_as: "det_{id}_{start}_{end}.wav"
  save_stream_as: "capture.wav"
store:
  postgres_dsn: "postgres://localhost/earshot"
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Detection.EnergyThreshold != 52 {
		t.Errorf("energy threshold = %g, want 52", cfg.Detection.EnergyThreshold)
	}
	if cfg.Detection.Validator != config.ValidatorEnergy {
		t.Errorf("validator = %q, want default energy", cfg.Detection.Validator)
	}
	if cfg.Output.PrintFormat != config.DefaultPrintFormat {
		t.Errorf("print format = %q, want default", cfg.Output.PrintFormat)
	}
	if cfg.Output.TimeFormat != config.DefaultTimeFormat {
		t.Errorf("time format = %q, want default", cfg.Output.TimeFormat)
	}
	if !cfg.Input.Record {
		t.Error("save_stream_as must imply input.record")
	}
	if cfg.Store.SourceLabel != "meeting.wav" {
		t.Errorf("source label = %q, want the input path", cfg.Store.SourceLabel)
	}

	mode, _, err := cfg.Input.ChannelMode()
	if err != nil {
		t.Fatalf("ChannelMode: %v", err)
	}
	if mode != audio.ChannelMix {
		t.Errorf("channel mode = %v, want ChannelMix", mode)
	}
}

func TestLoadFromReader_EmptyRequiresMicLayout(t *testing.T) {
	t.Parallel()

	// An empty config describes microphone capture and must demand a rate
	// and channel count.
	_, err := config.LoadFromReader(strings.NewReader(""))
	if err == nil {
		t.Fatal("expected validation error for empty microphone config")
	}
}

func TestLoadFromReader_MicConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(`
input:
  sampling_rate: 16000
  channels: 1
  max_read: 10
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Input.Path != "" {
		t.Errorf("path = %q, want empty (microphone)", cfg.Input.Path)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
inputt:
  path: "x.wav"
`))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad log level",
			yaml: "server:\n  log_level: chatty\ninput:\n  path: a.wav\n",
			want: "log_level",
		},
		{
			name: "raw input without layout",
			yaml: "input:\n  path: a.pcm\n",
			want: "sampling_rate",
		},
		{
			name: "stdin without layout",
			yaml: "input:\n  path: \"-\"\n",
			want: "sampling_rate",
		},
		{
			name: "bad sample width",
			yaml: "input:\n  path: a.raw\n  sampling_rate: 16000\n  sample_width: 3\n  channels: 1\n",
			want: "sample_width",
		},
		{
			name: "bad validator",
			yaml: "input:\n  path: a.wav\ndetection:\n  validator: psychic\n",
			want: "validator",
		},
		{
			name: "bad use_channel",
			yaml: "input:\n  path: a.wav\n  use_channel: left\n",
			want: "use_channel",
		},
		{
			name: "bad time format",
			yaml: "input:\n  path: a.wav\noutput:\n  time_format: \"%x\"\n",
			want: "time_format",
		},
		{
			name: "bad aggressiveness",
			yaml: "input:\n  path: a.wav\ndetection:\n  vad_aggressiveness: 7\n",
			want: "vad_aggressiveness",
		},
		{
			name: "negative max_read",
			yaml: "input:\n  path: a.wav\n  max_read: -1\n",
			want: "max_read",
		},
		{
			name: "bad format",
			yaml: "input:\n  path: a.bin\n  format: ogg\n  sampling_rate: 16000\n  sample_width: 2\n  channels: 1\n",
			want: "input.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatalf("expected validation error mentioning %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
