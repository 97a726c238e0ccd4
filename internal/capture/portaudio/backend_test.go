package portaudio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxtype/internal/capture"
)

var _ capture.Backend = (*Backend)(nil)

func TestOpenRejectsIntegerFormats(t *testing.T) {
	t.Parallel()

	b := New()
	require.Equal(t, "portaudio", b.Name())

	for _, format := range []capture.SampleFormat{capture.FormatS16LE, capture.FormatS32LE} {
		_, err := b.Open(context.Background(), capture.StreamConfig{SampleRate: 48000, Channels: 1, Format: format}, func([]float32) {})
		require.ErrorIs(t, err, capture.ErrUnsupportedFormat)
	}
}
