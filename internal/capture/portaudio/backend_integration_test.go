//go:build integration

package portaudio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxtype/internal/capture"
)

func TestDefaultInputCapturesAtNativeRate(t *testing.T) {
	b := New()
	if !b.Available() {
		t.Skip("no PortAudio input device")
	}

	cfg, err := b.NativeConfig(context.Background())
	require.NoError(t, err)
	require.Positive(t, cfg.SampleRate)
	require.Positive(t, cfg.Channels)

	listing, err := b.ListDevices(context.Background())
	require.NoError(t, err)
	require.Contains(t, listing, "*")

	session := capture.NewSession([]capture.Backend{b}, "portaudio", nil)
	require.NoError(t, session.Start(context.Background()))
	time.Sleep(300 * time.Millisecond)
	buf, err := session.Stop()
	require.NoError(t, err)
	require.Equal(t, cfg.SampleRate, buf.SampleRate)
	require.NotZero(t, buf.Len())
}
