package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/clipboard"
	"github.com/fmueller/voxtype/internal/session"
	"go.uber.org/zap"
)

const blankAudioToken = "[BLANK_AUDIO]"

func isBlankTranscript(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return true
	}

	return strings.EqualFold(trimmed, blankAudioToken)
}

func noSpeechHint() string {
	return "No speech detected. Check mic mute and selected input device, then try again."
}

// transcriptDeliverer prints every final text to stdout before handing it to
// the output dispatcher, if any. Blank transcripts are only delivered with
// copyEmpty.
type transcriptDeliverer struct {
	next      session.Deliverer
	out       io.Writer
	copyEmpty bool
	logger    *zap.Logger
}

func (d *transcriptDeliverer) Deliver(ctx context.Context, text string, mode clipboard.Mode) error {
	fmt.Fprintln(d.out, text)
	if d.next == nil {
		return nil
	}
	if isBlankTranscript(text) {
		d.logger.Warn(noSpeechHint())
		if !d.copyEmpty {
			return nil
		}
	}

	if err := d.next.Deliver(ctx, text, mode); err != nil {
		if errors.Is(err, clipboard.ErrUnavailable) {
			d.logger.Warn("clipboard unavailable; transcript left on stdout")
			return nil
		}
		return err
	}

	d.logger.Info("transcript delivered", zap.String("mode", string(mode)))
	return nil
}

// gatedTranscriber answers near-silent audio with the blank token instead of
// running the engine.
type gatedTranscriber struct {
	next          session.Transcriber
	thresholdDBFS float64
	logger        *zap.Logger
}

func (g *gatedTranscriber) Transcribe(ctx context.Context, samples []float32) (string, error) {
	silent, level := audio.IsSilent(samples, g.thresholdDBFS)
	if !silent {
		return g.next.Transcribe(ctx, samples)
	}

	g.logger.Info(
		"audio considered silent; skipping transcription",
		zap.Float64("rms_dbfs", level.RMSdBFS),
		zap.Float64("peak_dbfs", level.PeakdBFS),
		zap.Float64("threshold_dbfs", g.thresholdDBFS),
	)
	return blankAudioToken, nil
}
