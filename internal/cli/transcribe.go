package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var copyToClipboard bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Long:  "Run a WAV file through resampling, speech segmentation, transcription and optional refinement.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.printOnly = !copyToClipboard
			return app.transcribeFile(cmd.Context(), args[0])
		},
	}

	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Deliver the transcript with the configured output mode")
	return cmd
}

func (a *appState) transcribeFile(ctx context.Context, audioPath string) error {
	audioPath = filepath.Clean(audioPath)
	f, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("audio file not found: %w", err)
	}
	buf, err := audio.ReadWAV(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", audioPath, err)
	}

	coord, cleanup, err := a.coordinator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.Int("sample_rate", buf.SampleRate), zap.Duration("duration", buf.Duration()))
	stopSpinner := startPhaseSpinner(a.progressEnabled(), coord)
	started := time.Now()
	result, err := coord.Process(ctx, buf)
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
	} else {
		a.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)))
	}

	return a.reportSession(result, err)
}

func (a *appState) ensureModelAvailable(ctx context.Context) (whisper.ResolvedModel, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved, err := whisper.ResolveModel(a.settings.Whisper.Model, modelDir)
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !a.autoDownload {
		return whisper.ResolvedModel{}, fmt.Errorf("model %q is missing at %s; run `voxtype setup --model %s` or use --auto-download=true", resolved.Name, resolved.Path, resolved.Name)
	}

	a.log().Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
	if err := a.modelFetcher().Fetch(ctx, resolved); err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved.NeedsDownload = false
	return resolved, nil
}
