package cli

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/fmueller/voxtype/internal/clipboard"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBlankTranscriptDetection(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"":                  true,
		"   \n\t ":          true,
		blankAudioToken:     true,
		" [blank_audio] ":   true,
		"Hello world":       false,
		"[BLANK_AUDIO] hi!": false,
	}
	for transcript, blank := range cases {
		require.Equalf(t, blank, isBlankTranscript(transcript), "transcript %q", transcript)
	}
}

func TestSanitizeLanguageNormalizesCodes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{"": "auto", "   ": "auto", "en": "en", " EN ": "en", "De": "de"}
	for input, want := range cases {
		require.Equalf(t, want, sanitizeLanguage(input), "language %q", input)
	}
}

func TestTranscriptDelivererPrintOnly(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	d := &transcriptDeliverer{out: out, logger: zap.NewNop()}

	require.NoError(t, d.Deliver(context.Background(), "hello", clipboard.ModeBoth))
	require.Equal(t, "hello\n", out.String())
}

func TestTranscriptDelivererForwardsModeAndSkipsBlank(t *testing.T) {
	t.Parallel()

	next := &fakeDeliverer{}
	d := &transcriptDeliverer{next: next, out: new(bytes.Buffer), logger: zap.NewNop()}

	require.NoError(t, d.Deliver(context.Background(), "hello", clipboard.ModeDirectInput))
	require.NoError(t, d.Deliver(context.Background(), blankAudioToken, clipboard.ModeDirectInput))
	require.Equal(t, []string{"hello"}, next.delivered())
	require.Equal(t, []clipboard.Mode{clipboard.ModeDirectInput}, next.modes)
}

func TestTranscriptDelivererToleratesMissingClipboard(t *testing.T) {
	t.Parallel()

	next := &fakeDeliverer{err: fmt.Errorf("write: %w", clipboard.ErrUnavailable)}
	d := &transcriptDeliverer{next: next, out: new(bytes.Buffer), logger: zap.NewNop()}
	require.NoError(t, d.Deliver(context.Background(), "hello", clipboard.ModeClipboardOnly))

	next.err = errClipboardBroken
	require.ErrorIs(t, d.Deliver(context.Background(), "hello", clipboard.ModeClipboardOnly), errClipboardBroken)
}
