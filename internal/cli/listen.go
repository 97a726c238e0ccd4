package cli

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/fmueller/voxtype/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runDefault runs one push-to-talk session: Enter starts, Enter (or the
// --duration timer) stops.
func (a *appState) runDefault(ctx context.Context) error {
	coord, cleanup, err := a.coordinator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	interactive := a.duration <= 0
	if interactive && !a.immediate {
		if err := a.waitForEnter("Press Enter to start recording."); err != nil {
			return err
		}
	}

	if err := coord.Start(ctx); err != nil {
		return err
	}
	a.log().Info("recording started")

	if interactive {
		stopProgress := startSpinner(a.progressEnabled(), "Recording")
		err := a.waitForEnter("Recording... press Enter to stop.")
		stopProgress()
		if err != nil && !errors.Is(err, io.EOF) {
			_, _ = coord.Stop(ctx)
			return err
		}
	} else {
		stopProgress := startDurationProgress(a.progressEnabled(), "Recording", a.duration)
		timer := time.NewTimer(a.duration)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		timer.Stop()
		stopProgress()
	}

	stopSpinner := startPhaseSpinner(a.progressEnabled(), coord)
	result, err := coord.Stop(ctx)
	stopSpinner()
	return a.reportSession(result, err)
}

// reportSession logs the outcome of a processed session. Delivery failures
// and operator mistakes such as an empty capture are downgraded to warnings.
func (a *appState) reportSession(result session.Result, err error) error {
	switch {
	case errors.Is(err, session.ErrNoAudioCaptured):
		a.log().Warn(noSpeechHint())
		return nil
	case session.IsStateError(err):
		a.log().Warn("ignored", zap.Error(err))
		return nil
	case errors.Is(err, session.ErrDelivery):
		a.log().Warn("failed to deliver transcript; transcript left on stdout", zap.Error(err))
		return nil
	case err != nil:
		return err
	}

	if result.Placeholder {
		a.log().Info("no speech model loaded; delivered placeholder text")
	}
	a.log().Debug(
		"session finished",
		zap.Bool("llm_used", result.LLMUsed),
		zap.Bool("refined", result.RefinedText != ""),
		zap.Duration("audio", result.Captured.Duration()),
		zap.String("segmentation", string(result.Segmentation.Decision)),
	)
	return nil
}

func newListenCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Keep running and toggle recording with every Enter press",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.listen(cmd.Context())
		},
	}
}

// listen toggles recording on every line read from stdin until EOF. A
// stop runs in its own goroutine so the next press is read while the
// previous recording is still transcribing.
func (a *appState) listen(ctx context.Context) error {
	coord, cleanup, err := a.coordinator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if !coord.EngineLoaded() {
		a.log().Warn("no speech model loaded; recordings produce placeholder text")
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	finish := func() {
		result, err := coord.Toggle(ctx)
		if err := a.reportSession(result, err); err != nil {
			a.log().Error("session failed", zap.Error(err))
		}
	}

	prompt := "Press Enter to start recording, Ctrl+D to quit."
	for {
		err := a.waitForEnter(prompt)
		if errors.Is(err, io.EOF) {
			if coord.Status().State == session.StateRecording {
				finish()
			}
			return nil
		}
		if err != nil {
			return err
		}

		switch coord.Status().State {
		case session.StateIdle:
			a.refreshSessionConfig(coord)
			if _, err := coord.Toggle(ctx); err != nil {
				a.log().Error("failed to start recording", zap.Error(err))
				prompt = "Press Enter to try again."
				continue
			}
			prompt = "Recording... press Enter to stop."
		case session.StateRecording:
			wg.Add(1)
			go func() {
				defer wg.Done()
				finish()
			}()
			prompt = ""
		default:
			a.log().Info("still processing the previous recording")
			prompt = ""
		}
	}
}

// refreshSessionConfig re-reads the config file so edits made while listen
// runs apply from the next recording on. Clients built at startup (engine,
// refinement provider, history) are not rebuilt.
func (a *appState) refreshSessionConfig(coord *session.Coordinator) {
	if err := a.loadSettings(a.flags, false); err != nil {
		a.log().Warn("config reload failed; keeping previous settings", zap.Error(err))
		return
	}
	coord.Reconfigure(a.sessionConfig())
}
