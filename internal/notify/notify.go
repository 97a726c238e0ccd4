// Package notify mirrors session lifecycle events as desktop notifications.
package notify

import (
	"errors"
	"fmt"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/fmueller/voxtype/internal/session"
)

const (
	appName        = "Voxtype"
	maxPreviewRune = 120
)

type Observer struct {
	send   func(title, message string) error
	logger *zap.Logger
}

func NewObserver(logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		logger: logger,
	}
}

func (o *Observer) OnEvent(e session.Event) {
	title, message, ok := describe(e)
	if !ok {
		return
	}
	if err := o.send(title, message); err != nil {
		o.logger.Debug("desktop notification failed", zap.String("event", string(e.Kind)), zap.Error(err))
	}
}

func describe(e session.Event) (string, string, bool) {
	switch e.Kind {
	case session.EventRecordingStarted:
		return appName, "Recording started", true
	case session.EventRecordingStopped:
		return appName, "Recording stopped, transcribing", true
	case session.EventRefinementFailed:
		return appName, "LLM refinement failed; using the original transcription", true
	case session.EventTranscriptionComplete:
		return appName, preview(e.Text), true
	case session.EventSessionFailed:
		if errors.Is(e.Err, session.ErrDevice) {
			return appName + " error", "Microphone failed: " + fmt.Sprint(e.Err), true
		}
		return appName + " error", fmt.Sprint(e.Err), true
	default:
		return "", "", false
	}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= maxPreviewRune {
		return text
	}
	return string(runes[:maxPreviewRune-1]) + "…"
}
