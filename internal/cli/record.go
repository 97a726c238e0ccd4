package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/capture"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type recordOptions struct {
	duration time.Duration
	output   string
}

func newRecordCmd(app *appState) *cobra.Command {
	opts := &recordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record audio into a WAV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := app.recordAudio(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Record duration, e.g. 6s; 0 means interactive start/stop")
	cmd.Flags().StringVar(&opts.output, "output", "", "Output WAV file path")
	cmd.Flags().BoolVar(&app.immediate, "immediate", false, "Start recording immediately without waiting for Enter")

	return cmd
}

// recordAudio captures from the selected backend and writes a mono WAV at
// the device's native rate.
func (a *appState) recordAudio(ctx context.Context, opts recordOptions) (string, error) {
	outPath, err := a.recordingOutputPath(opts.output)
	if err != nil {
		return "", err
	}

	interactive := opts.duration <= 0
	if interactive && !a.immediate {
		if err := a.waitForEnter("Press Enter to start recording."); err != nil {
			return "", err
		}
	}

	recorder := capture.NewSession(a.captureBackends(), a.settings.Capture.Backend, a.log())
	if err := recorder.Start(ctx); err != nil {
		return "", err
	}
	a.log().Info("recording started", zap.String("backend", recorder.Backend()), zap.Int("sample_rate", recorder.SampleRate()), zap.String("output", outPath))

	if interactive {
		stopProgress := startSpinner(a.progressEnabled(), "Recording")
		err = a.waitForEnter("Recording... press Enter to stop.")
		stopProgress()
	} else {
		stopProgress := startDurationProgress(a.progressEnabled(), "Recording", opts.duration)
		timer := time.NewTimer(opts.duration)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-timer.C:
		}
		timer.Stop()
		stopProgress()
	}

	buf, stopErr := recorder.Stop()
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if stopErr != nil {
		return "", fmt.Errorf("record audio with backend %s: %w", recorder.Backend(), stopErr)
	}
	if buf.Len() == 0 {
		return "", fmt.Errorf("record audio with backend %s: no samples captured", recorder.Backend())
	}

	if err := writeWAVFile(outPath, buf); err != nil {
		return "", err
	}

	a.log().Info("recording finished", zap.String("path", outPath), zap.Duration("duration", buf.Duration()), zap.Int("sample_rate", buf.SampleRate))
	return outPath, nil
}

func writeWAVFile(path string, buf audio.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	if err := audio.WriteWAV(f, buf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
