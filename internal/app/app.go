// Package app wires the earshot subsystems into a running application: the
// audio source chain, the validator, the tokenization pipeline, the delivery
// sinks and the optional observability endpoint.
//
// New creates and connects everything, Run executes the detection run, and
// Shutdown tears the subsystems down in order. For testing, inject doubles
// via the functional options (WithSource, WithSinks, ...).
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/earshot/internal/config"
	"github.com/MrWong99/earshot/internal/health"
	"github.com/MrWong99/earshot/internal/observe"
	"github.com/MrWong99/earshot/internal/server"
	"github.com/MrWong99/earshot/internal/sink"
	"github.com/MrWong99/earshot/internal/store"
	"github.com/MrWong99/earshot/pkg/audio"
	"github.com/MrWong99/earshot/pkg/tokenizer"
)

// App owns all subsystem lifetimes for one detection run.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	source   audio.Source
	recorder *audio.Recorder
	sinks    []sink.Sink
	srv      *server.Server
	feed     *server.Feed
	pool     *pgxpool.Pool

	// printerOut receives the per-detection lines; defaults to stdout.
	printerOut io.Writer

	// Detections gathered during Run, in emission order.
	detections []audio.Detection

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects an audio source instead of opening one from config.
func WithSource(src audio.Source) Option {
	return func(a *App) { a.source = src }
}

// WithSinks appends extra delivery sinks.
func WithSinks(sinks ...sink.Sink) Option {
	return func(a *App) { a.sinks = append(a.sinks, sinks...) }
}

// WithMetrics injects a metrics instance instead of building one from the
// global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithPrinterOutput redirects the per-detection lines away from stdout.
func WithPrinterOutput(w io.Writer) Option {
	return func(a *App) { a.printerOut = w }
}

// New assembles the application from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, printerOut: os.Stdout}
	for _, opt := range opts {
		opt(a)
	}

	var err error
	if a.metrics == nil {
		if a.metrics, err = observe.NewMetrics(otel.GetMeterProvider()); err != nil {
			return nil, fmt.Errorf("app: create metrics: %w", err)
		}
	}

	if a.source == nil {
		if a.source, err = openSource(cfg.Input); err != nil {
			return nil, err
		}
		if c, ok := a.source.(io.Closer); ok {
			a.closers = append(a.closers, c.Close)
		}
	}

	// Conversion happens before recording so that the capture and the
	// framed stream agree; the recorder wraps before the limiter so the
	// capture is byte-identical to the stream within the read cap.
	if cfg.Input.ConvertRate > 0 || cfg.Input.ConvertChannels > 0 {
		rate := cfg.Input.ConvertRate
		if rate == 0 {
			rate = a.source.Format().SamplingRate
		}
		channels := cfg.Input.ConvertChannels
		if channels == 0 {
			channels = a.source.Format().Channels
		}
		if a.source, err = audio.NewConvertingSource(a.source, rate, channels); err != nil {
			return nil, err
		}
	}
	if cfg.Input.Record {
		a.recorder = audio.NewRecorder(a.source)
		a.source = a.recorder
	}
	if cfg.Input.MaxRead > 0 {
		if a.source, err = audio.NewLimiter(a.source, cfg.Input.MaxRead); err != nil {
			return nil, err
		}
	}

	if err := a.buildSinks(ctx); err != nil {
		return nil, err
	}

	if cfg.Server.ListenAddr != "" {
		a.feed = server.NewFeed()
		a.sinks = append(a.sinks, sink.NewFeedSink(a.feed, cfg.Store.SourceLabel))
		a.srv = server.New(cfg.Server.ListenAddr, a.feed, a.healthCheckers()...)
	}

	return a, nil
}

// buildSinks assembles the configured delivery sinks in a stable order:
// printer, detection saver, stream saver, store.
func (a *App) buildSinks(ctx context.Context) error {
	out := a.cfg.Output

	if out.Print {
		p, err := sink.NewPrinter(a.printerOut, out.PrintFormat, out.TimeFormat)
		if err != nil {
			return fmt.Errorf("app: create printer: %w", err)
		}
		a.sinks = append(a.sinks, p)
	}
	if out.SaveDetectionsAs != "" {
		a.sinks = append(a.sinks, sink.NewRegionSaver(out.SaveDetectionsAs))
	}
	if out.SaveStreamAs != "" {
		if a.recorder == nil {
			return fmt.Errorf("app: output.save_stream_as requires input.record")
		}
		a.sinks = append(a.sinks, sink.NewStreamSaver(a.recorder, out.SaveStreamAs))
	}
	if dsn := a.cfg.Store.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("app: connect detection store: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		st := store.NewPostgresStore(pool)
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		a.sinks = append(a.sinks, sink.NewStoreSink(st, a.cfg.Store.SourceLabel))
	}
	return nil
}

// healthCheckers builds the readiness checks for the observability endpoint.
func (a *App) healthCheckers() []health.Checker {
	var checkers []health.Checker
	if a.pool != nil {
		checkers = append(checkers, health.Checker{
			Name:  "store",
			Check: func(ctx context.Context) error { return a.pool.Ping(ctx) },
		})
	}
	return checkers
}

// Detections returns the detections delivered during Run, in emission
// order.
func (a *App) Detections() []audio.Detection { return a.detections }

// Run executes the detection pipeline, serving the observability endpoint
// alongside it when configured. It returns once the stream is exhausted (or
// failed) and the endpoint has drained.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	if a.srv != nil {
		g.Go(func() error {
			return a.srv.Run(gctx)
		})
	}

	g.Go(func() error {
		// The endpoint stops once the pipeline is done.
		defer cancel()
		return a.runPipeline(gctx)
	})

	return g.Wait()
}

// runPipeline drives source → validator → tokenizer → sinks.
func (a *App) runPipeline(ctx context.Context) error {
	ctx, span := observe.StartSpan(ctx, "earshot.run")
	defer span.End()

	a.metrics.ActiveRuns.Add(ctx, 1)
	defer a.metrics.ActiveRuns.Add(ctx, -1)

	splitCfg, err := a.splitConfig()
	if err != nil {
		return err
	}

	log := observe.Logger(ctx)
	log.Info("detection run starting",
		"source", a.cfg.Store.SourceLabel,
		"analysis_window", splitCfg.AnalysisWindow,
		"min_dur", splitCfg.MinDur,
		"max_dur", splitCfg.MaxDur,
		"max_silence", splitCfg.MaxSilence,
	)

	id := 0
	err = audio.SplitFunc(a.source, splitCfg, func(det audio.Detection) {
		id++
		a.detections = append(a.detections, det)
		a.metrics.DetectionsDelivered.Add(ctx, 1)
		a.metrics.DetectionDuration.Record(ctx, det.Duration())
		log.Debug("detection",
			"id", id,
			"start", det.Start,
			"end", det.End,
			"duration", det.Duration(),
		)
		for _, s := range a.sinks {
			if serr := s.OnDetection(ctx, id, det); serr != nil {
				a.metrics.SinkErrors.Add(ctx, 1, metric.WithAttributes(
					attribute.String("sink", fmt.Sprintf("%T", s)),
				))
				log.Warn("sink delivery failed", "sink", fmt.Sprintf("%T", s), "err", serr)
			}
		}
	})
	if err != nil {
		a.metrics.SourceReadErrors.Add(ctx, 1)
		span.RecordError(err)
	}

	// Sinks close even on a failed run so partial results are flushed.
	for _, s := range a.sinks {
		if cerr := s.Close(); cerr != nil {
			log.Warn("sink close failed", "sink", fmt.Sprintf("%T", s), "err", cerr)
		}
	}

	log.Info("detection run finished", "detections", id, "err", err)
	return err
}

// splitConfig maps the detection config onto the pkg/audio split options.
func (a *App) splitConfig() (audio.SplitConfig, error) {
	det := a.cfg.Detection
	mode, index, err := a.cfg.Input.ChannelMode()
	if err != nil {
		return audio.SplitConfig{}, err
	}

	splitCfg := audio.SplitConfig{
		MinDur:              det.MinDur,
		MaxDur:              det.MaxDur,
		MaxSilence:          det.MaxSilence,
		AnalysisWindow:      det.AnalysisWindow,
		HopDur:              det.HopDur,
		DropTrailingSilence: det.DropTrailingSilence,
		StrictMinDur:        det.StrictMinDur,
		EnergyThreshold:     det.EnergyThreshold,
		UseChannel:          mode,
		ChannelIndex:        index,
	}

	var validator tokenizer.Validator[[]byte]
	if det.Validator == config.ValidatorWebRTC {
		validator, err = audio.NewWebRTCValidator(
			a.source.Format().SamplingRate,
			det.VadAggressiveness,
			webrtcFallbackRMS,
		)
		if err != nil {
			return audio.SplitConfig{}, fmt.Errorf("app: create webrtc validator: %w", err)
		}
	}
	if validator == nil {
		validator, err = audio.NewEnergyValidator(
			orDefault(det.EnergyThreshold, audio.DefaultEnergyThreshold),
			a.source.Format(), mode, index,
		)
		if err != nil {
			return audio.SplitConfig{}, err
		}
	}
	splitCfg.Validator = &countingValidator{inner: validator, metrics: a.metrics}
	return splitCfg, nil
}

// webrtcFallbackRMS is the linear RMS threshold used when a frame size is
// rejected by the WebRTC detector.
const webrtcFallbackRMS = 500

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// countingValidator wraps a validator and counts verdicts.
type countingValidator struct {
	inner   tokenizer.Validator[[]byte]
	metrics *observe.Metrics
}

func (v *countingValidator) IsValid(frame []byte) bool {
	ok := v.inner.IsValid(frame)
	verdict := "invalid"
	if ok {
		verdict = "valid"
	}
	v.metrics.FramesProcessed.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("verdict", verdict),
	))
	return ok
}

// Shutdown tears down the subsystems in order. Safe to call more than once.
func (a *App) Shutdown(context.Context) error {
	var firstErr error
	a.stopOnce.Do(func() {
		for _, closeFn := range a.closers {
			if err := closeFn(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

// openSource builds the source chain described by the input config.
func openSource(in config.InputConfig) (audio.Source, error) {
	format := audio.Format{
		SamplingRate: in.SamplingRate,
		SampleWidth:  in.SampleWidth,
		Channels:     in.Channels,
	}
	switch {
	case in.Path == "":
		slog.Info("capturing from default microphone",
			"sampling_rate", in.SamplingRate, "channels", in.Channels)
		return audio.NewMicSource(in.SamplingRate, in.Channels, 0)
	case in.Path == "-":
		return audio.NewStdinSource(format)
	case strings.EqualFold(in.Format, "raw"):
		return audio.NewRawFileSource(in.Path, format)
	case strings.EqualFold(in.Format, "wav"), strings.EqualFold(in.Format, "wave"):
		return audio.NewWaveFileSource(in.Path)
	case hasWavExt(in.Path):
		return audio.NewWaveFileSource(in.Path)
	default:
		return audio.NewRawFileSource(in.Path, format)
	}
}

// hasWavExt reports whether path names a WAV file by extension.
func hasWavExt(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".wave")
}
