// Package session sequences one push-to-talk recording through capture,
// resampling, speech segmentation, transcription, refinement and delivery.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/clipboard"
	"github.com/fmueller/voxtype/internal/history"
)

const tracerName = "github.com/fmueller/voxtype/internal/session"

// Recorder owns the input device for the Recording state.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (audio.Buffer, error)
}

type Segmenter interface {
	ExtractSpeech(samples []float32) (audio.Segmentation, error)
}

// Transcriber turns TargetSampleRate samples into text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

type Refiner interface {
	Refine(ctx context.Context, text, template string) (string, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, text string, mode clipboard.Mode) error
}

type LogStore interface {
	Append(ctx context.Context, entry history.Entry) error
}

// Config is the settings snapshot a session runs with.
type Config struct {
	RefinementEnabled bool
	PromptTemplate    string
	Preset            string
	OutputMode        clipboard.Mode
}

type Options struct {
	Recorder  Recorder
	Segmenter Segmenter
	Refiner   Refiner
	Deliverer Deliverer
	LogStore  LogStore
	Config    Config
	Logger    *zap.Logger
}

// Result is the outcome of one processed session.
type Result struct {
	Text         string
	RawText      string
	RefinedText  string
	LLMUsed      bool
	Preset       string
	Placeholder  bool
	Captured     audio.Buffer
	Segmentation audio.Segmentation
}

// Coordinator is the single owner of session state. Each field group has
// its own lock and none is held across device, engine or network calls.
type Coordinator struct {
	recorder  Recorder
	segmenter Segmenter
	refiner   Refiner
	deliverer Deliverer
	logStore  LogStore
	logger    *zap.Logger
	tracer    trace.Tracer

	// mu guards the state machine only.
	mu      sync.Mutex
	state   State
	phase   Phase
	opening bool

	engineMu sync.RWMutex
	engine   Transcriber

	cfgMu sync.RWMutex
	cfg   Config

	// deliverMu serializes access to the clipboard and virtual keyboard.
	deliverMu sync.Mutex

	observers observerList
	now       func() time.Time
}

func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Segmenter == nil {
		opts.Segmenter = audio.NewSegmenter(nil, opts.Logger)
	}
	return &Coordinator{
		recorder:  opts.Recorder,
		segmenter: opts.Segmenter,
		refiner:   opts.Refiner,
		deliverer: opts.Deliverer,
		logStore:  opts.LogStore,
		logger:    opts.Logger,
		tracer:    otel.Tracer(tracerName),
		cfg:       opts.Config,
		now:       time.Now,
	}
}

// Subscribe registers o for lifecycle events and returns a function that
// removes it.
func (c *Coordinator) Subscribe(o Observer) func() {
	return c.observers.add(o)
}

// SetEngine installs the transcription engine. Until one is set sessions
// produce a placeholder text.
func (c *Coordinator) SetEngine(engine Transcriber) {
	c.engineMu.Lock()
	defer c.engineMu.Unlock()
	c.engine = engine
}

func (c *Coordinator) EngineLoaded() bool {
	c.engineMu.RLock()
	defer c.engineMu.RUnlock()
	return c.engine != nil
}

// Reconfigure replaces the settings used by the next session.
func (c *Coordinator) Reconfigure(cfg Config) {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	c.cfg = cfg
}

func (c *Coordinator) config() Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, Phase: c.phase}
}

// Start moves Idle to Recording and opens the input device.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	if c.recorder == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no recorder configured", ErrDevice)
	}
	c.state = StateRecording
	c.opening = true
	c.mu.Unlock()

	if err := c.recorder.Start(ctx); err != nil {
		c.setIdle()
		c.logger.Error("failed to start recording", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrDevice, err)
	}

	c.mu.Lock()
	c.opening = false
	c.mu.Unlock()

	c.logger.Info("recording started")
	c.emit(Event{Kind: EventRecordingStarted})
	return nil
}

// Stop ends the recording and runs the captured audio through the whole
// pipeline. A DeliveryError is returned together with a valid Result.
func (c *Coordinator) Stop(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.state != StateRecording || c.opening {
		c.mu.Unlock()
		return Result{}, ErrNotRecording
	}
	c.state = StateProcessing
	c.phase = PhaseNone
	c.mu.Unlock()

	buf, err := c.recorder.Stop()
	if err != nil {
		if buf.Len() == 0 {
			c.setIdle()
			err = fmt.Errorf("%w: %w", ErrDevice, err)
			c.emit(Event{Kind: EventRecordingStopped})
			c.emit(Event{Kind: EventSessionFailed, Err: err})
			return Result{}, err
		}
		c.logger.Warn("capture stopped with error; keeping captured audio", zap.Error(err))
	}

	c.logger.Info(
		"recording stopped",
		zap.Int("samples", buf.Len()),
		zap.Int("sample_rate", buf.SampleRate),
		zap.Duration("duration", buf.Duration()),
	)
	c.emit(Event{Kind: EventRecordingStopped})

	// Nothing captured is an operator mistake, not a failed session.
	if buf.Len() == 0 {
		c.setIdle()
		c.logger.Warn("no audio captured")
		return Result{}, ErrNoAudioCaptured
	}

	return c.run(ctx, buf)
}

// Toggle starts a recording when idle and stops it when recording. The
// returned Result is empty for a start.
func (c *Coordinator) Toggle(ctx context.Context) (Result, error) {
	c.mu.Lock()
	recording := c.state == StateRecording && !c.opening
	c.mu.Unlock()

	if recording {
		return c.Stop(ctx)
	}
	return Result{}, c.Start(ctx)
}

// Process runs an already captured buffer through the pipeline without
// touching the input device.
func (c *Coordinator) Process(ctx context.Context, buf audio.Buffer) (Result, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return Result{}, ErrAlreadyRecording
	}
	if buf.Len() == 0 {
		c.mu.Unlock()
		return Result{}, ErrNoAudioCaptured
	}
	c.state = StateProcessing
	c.phase = PhaseNone
	c.mu.Unlock()

	return c.run(ctx, buf)
}

func (c *Coordinator) run(ctx context.Context, buf audio.Buffer) (Result, error) {
	defer c.setIdle()

	cfg := c.config()
	ctx, span := c.tracer.Start(ctx, "session.process", trace.WithAttributes(
		attribute.Int("audio.samples", buf.Len()),
		attribute.Int("audio.sample_rate", buf.SampleRate),
		attribute.Bool("llm.enabled", cfg.RefinementEnabled),
	))
	defer span.End()

	result := Result{Captured: buf, LLMUsed: cfg.RefinementEnabled}
	if cfg.RefinementEnabled {
		result.Preset = cfg.Preset
	}

	fail := func(phase Phase, err error) (Result, error) {
		perr := &PhaseError{Phase: phase, Err: err}
		span.RecordError(perr)
		span.SetStatus(codes.Error, perr.Error())
		c.logger.Error("session failed", zap.String("phase", string(phase)), zap.Error(err))
		c.emit(Event{Kind: EventSessionFailed, Phase: phase, Err: perr})
		return Result{}, perr
	}

	var resampled []float32
	err := c.runPhase(ctx, PhaseResampling, func(context.Context) error {
		var err error
		resampled, err = audio.Resample(buf.Samples, buf.SampleRate, audio.TargetSampleRate)
		return err
	})
	if err != nil {
		return fail(PhaseResampling, err)
	}

	// A segmentation failure is reported as phase-failed but is not fatal:
	// the session continues on the unfiltered audio.
	speech := resampled
	segErr := c.runPhase(ctx, PhaseSegmenting, func(context.Context) error {
		seg, err := c.segmenter.ExtractSpeech(resampled)
		result.Segmentation = seg
		return err
	})
	switch {
	case segErr != nil:
		c.logger.Warn("speech segmentation failed; using unfiltered audio", zap.Error(segErr))
	case len(result.Segmentation.Samples) == 0:
		c.logger.Info("no speech detected; using unfiltered audio", zap.Int("samples", len(resampled)))
	default:
		speech = result.Segmentation.Samples
	}

	c.emit(Event{Kind: EventTranscriptionStarted})
	err = c.runPhase(ctx, PhaseTranscribing, func(ctx context.Context) error {
		c.engineMu.RLock()
		engine := c.engine
		c.engineMu.RUnlock()

		if engine == nil {
			c.logger.Warn("no transcription engine loaded; using placeholder text")
			result.RawText = placeholderText(len(speech))
			result.Placeholder = true
			return nil
		}

		text, err := engine.Transcribe(ctx, speech)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTranscription, err)
		}
		result.RawText = text
		return nil
	})
	if err != nil {
		return fail(PhaseTranscribing, err)
	}
	c.logger.Info("transcription finished", zap.Int("chars", len(result.RawText)), zap.Bool("placeholder", result.Placeholder))

	result.Text = result.RawText
	if cfg.RefinementEnabled {
		c.emit(Event{Kind: EventRefinementStarted})
		refineErr := c.runPhase(ctx, PhaseRefining, func(ctx context.Context) error {
			return c.refine(ctx, cfg, &result)
		})
		if refineErr != nil {
			c.logger.Warn("llm refinement failed; using original text", zap.Error(refineErr))
			c.emit(Event{Kind: EventRefinementFailed, Err: refineErr})
		} else {
			c.emit(Event{Kind: EventRefinementComplete, Text: result.RefinedText})
		}
	}

	deliverErr := c.runPhase(ctx, PhaseDelivering, func(ctx context.Context) error {
		return c.deliver(ctx, cfg, result.Text)
	})
	c.appendLog(ctx, result)

	span.SetAttributes(attribute.Int("text.chars", len(result.Text)))
	c.emit(Event{Kind: EventTranscriptionComplete, Text: result.Text})

	if deliverErr != nil {
		return result, &PhaseError{Phase: PhaseDelivering, Err: deliverErr}
	}
	return result, nil
}

func (c *Coordinator) refine(ctx context.Context, cfg Config, result *Result) error {
	if c.refiner == nil {
		return fmt.Errorf("%w: no refinement client configured", ErrRefinement)
	}
	refined, err := c.refiner.Refine(ctx, result.RawText, cfg.PromptTemplate)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRefinement, err)
	}
	if refined == "" {
		return fmt.Errorf("%w: empty response", ErrRefinement)
	}
	result.RefinedText = refined
	result.Text = refined
	return nil
}

func (c *Coordinator) deliver(ctx context.Context, cfg Config, text string) error {
	if c.deliverer == nil {
		return nil
	}

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	if err := c.deliverer.Deliver(ctx, text, cfg.OutputMode); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

// appendLog persists the result. Failures are logged only.
func (c *Coordinator) appendLog(ctx context.Context, result Result) {
	if c.logStore == nil {
		return
	}
	entry := history.Entry{
		Timestamp:    c.now(),
		RawText:      result.RawText,
		RefinedText:  result.RefinedText,
		LLMUsed:      result.LLMUsed,
		Preset:       result.Preset,
		AudioSeconds: result.Captured.Duration().Seconds(),
	}
	if err := c.logStore.Append(ctx, entry); err != nil {
		c.logger.Warn("failed to save history entry", zap.Error(err))
	}
}

// runPhase runs fn as one Processing phase: it records the phase, opens a
// span and emits the started and completed/failed events.
func (c *Coordinator) runPhase(ctx context.Context, phase Phase, fn func(context.Context) error) error {
	c.mu.Lock()
	c.phase = phase
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "session."+string(phase))
	defer span.End()

	started := time.Now()
	c.emit(Event{Kind: EventPhaseStarted, Phase: phase})

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.emit(Event{Kind: EventPhaseFailed, Phase: phase, Err: err})
		return err
	}

	c.logger.Debug("phase completed", zap.String("phase", string(phase)), zap.Duration("took", time.Since(started)))
	c.emit(Event{Kind: EventPhaseCompleted, Phase: phase})
	return nil
}

func (c *Coordinator) setIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.phase = PhaseNone
	c.opening = false
}

func (c *Coordinator) emit(e Event) {
	if e.At.IsZero() {
		e.At = c.now()
	}
	c.observers.emit(e)
}

func placeholderText(samples int) string {
	return fmt.Sprintf("[demo mode] recorded %d samples of audio; load a speech model to transcribe", samples)
}
