package cli

import (
	"context"
	"fmt"

	"github.com/fmueller/voxtype/internal/capture"
	"github.com/fmueller/voxtype/internal/clipboard"
	"github.com/fmueller/voxtype/internal/history"
	"github.com/fmueller/voxtype/internal/notify"
	"github.com/fmueller/voxtype/internal/platform"
	"github.com/fmueller/voxtype/internal/refine"
	"github.com/fmueller/voxtype/internal/session"
	"github.com/fmueller/voxtype/internal/telemetry"
	"github.com/fmueller/voxtype/internal/version"
	"github.com/fmueller/voxtype/internal/whisper"
	"go.uber.org/zap"
)

func (a *appState) coordinator(ctx context.Context) (*session.Coordinator, func(), error) {
	if a.coordinatorFn != nil {
		return a.coordinatorFn(ctx)
	}
	return a.buildCoordinator(ctx)
}

// buildCoordinator wires the production collaborators. The returned cleanup
// releases them in reverse order.
func (a *appState) buildCoordinator(ctx context.Context) (*session.Coordinator, func(), error) {
	logger := a.log()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if a.trace {
		shutdown, err := telemetry.Setup(ctx, telemetry.Options{
			ServiceName: "voxtype",
			Version:     version.Resolve(),
			Writer:      a.errWriter(),
			Logger:      logger,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("set up tracing: %w", err)
		}
		closers = append(closers, func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("failed to flush traces", zap.Error(err))
			}
		})
	}

	deliverer := &transcriptDeliverer{out: a.outWriter(), copyEmpty: a.copyEmpty, logger: logger}
	if !a.printOnly {
		deliverer.next = clipboard.NewDispatcher(clipboard.SystemClipboard{}, clipboard.NewKeyboardPaster(), logger)
	}

	opts := session.Options{
		Recorder:  capture.NewSession(a.captureBackends(), a.settings.Capture.Backend, logger),
		Deliverer: deliverer,
		Config:    a.sessionConfig(),
		Logger:    logger,
	}

	if a.settings.LLM.Enabled {
		client, err := a.refineClient()
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		opts.Refiner = client
	}

	if a.settings.History.Enabled {
		store, err := a.openHistory(ctx)
		if err != nil {
			logger.Warn("history unavailable; sessions will not be saved", zap.Error(err))
		} else {
			opts.LogStore = store
			closers = append(closers, func() { _ = store.Close() })
		}
	}

	coord := session.New(opts)
	coord.Subscribe(session.ObserverFunc(func(e session.Event) {
		logger.Debug("session event", zap.String("kind", string(e.Kind)), zap.String("phase", string(e.Phase)), zap.Error(e.Err))
	}))
	if a.settings.Notify.Enabled {
		coord.Subscribe(notify.NewObserver(logger))
	}

	if a.demo {
		logger.Info("demo mode: no speech model loaded")
		return coord, cleanup, nil
	}

	transcriber, err := a.loadTranscriber(ctx)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	coord.SetEngine(transcriber)

	return coord, cleanup, nil
}

func (a *appState) loadTranscriber(ctx context.Context) (session.Transcriber, error) {
	executable, err := whisper.LocateEngine()
	if err != nil {
		return nil, err
	}

	model, err := a.ensureModelAvailable(ctx)
	if err != nil {
		return nil, err
	}

	engine, err := whisper.NewEngine(executable, model, a.settings.Whisper.Language, a.log())
	if err != nil {
		return nil, err
	}
	a.log().Debug("speech model loaded", zap.String("model", model.Name), zap.String("path", model.Path), zap.String("engine", executable))

	var transcriber session.Transcriber = engine
	if a.silenceGate {
		transcriber = &gatedTranscriber{next: transcriber, thresholdDBFS: a.silenceDBFS, logger: a.log()}
	}
	return transcriber, nil
}

func (a *appState) refineClient() (refine.Client, error) {
	return refine.New(refine.Options{
		Provider: a.settings.LLM.Provider,
		URL:      a.settings.LLM.URL,
		Model:    a.settings.LLM.Model,
		APIKey:   a.settings.LLM.APIKey,
		Logger:   a.log(),
	})
}

func (a *appState) openHistory(ctx context.Context) (*history.Store, error) {
	path, err := platform.ResolveHistoryPath(a.settings.History.Path)
	if err != nil {
		return nil, err
	}
	return history.Open(ctx, path, a.log())
}
