package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	name      string
	available bool
}

func (s stubBackend) Name() string    { return s.name }
func (s stubBackend) Available() bool { return s.available }
func (s stubBackend) NativeConfig(context.Context) (StreamConfig, error) {
	return StreamConfig{SampleRate: 16000, Channels: 1, Format: FormatF32LE}, nil
}
func (s stubBackend) Open(context.Context, StreamConfig, func([]float32)) (Stream, error) {
	return nil, errors.New("not implemented")
}
func (s stubBackend) ListDevices(context.Context) (string, error) { return "", nil }

func TestSelectBackendUsesPriorityOrder(t *testing.T) {
	t.Parallel()

	backend, err := SelectBackend([]Backend{
		stubBackend{name: "portaudio", available: false},
		stubBackend{name: "arecord", available: true},
		stubBackend{name: "ffmpeg", available: true},
	}, "auto")
	require.NoError(t, err)
	require.Equal(t, "arecord", backend.Name())
}

func TestSelectBackendUsesPreferredWhenAvailable(t *testing.T) {
	t.Parallel()

	backend, err := SelectBackend([]Backend{
		stubBackend{name: "pw-record", available: true},
		stubBackend{name: "arecord", available: true},
	}, "arecord")
	require.NoError(t, err)
	require.Equal(t, "arecord", backend.Name())
}

func TestSelectBackendReturnsErrorWhenUnavailable(t *testing.T) {
	t.Parallel()

	_, err := SelectBackend([]Backend{stubBackend{name: "pw-record", available: false}}, "pw-record")
	require.Error(t, err)

	_, err = SelectBackend([]Backend{
		stubBackend{name: "pw-record", available: false},
		stubBackend{name: "arecord", available: false},
	}, "auto")
	require.ErrorIs(t, err, ErrNoBackendAvailable)
}

func TestOrderBackendsMovesPreferredFirst(t *testing.T) {
	t.Parallel()

	ordered, err := orderBackends([]Backend{
		stubBackend{name: "portaudio"},
		stubBackend{name: "pw-record"},
		stubBackend{name: "arecord"},
	}, "arecord")
	require.NoError(t, err)

	names := make([]string, 0, len(ordered))
	for _, backend := range ordered {
		names = append(names, backend.Name())
	}
	require.Equal(t, []string{"arecord", "portaudio", "pw-record"}, names)

	_, err = orderBackends([]Backend{stubBackend{name: "portaudio"}}, "sndio")
	require.Error(t, err)
}

func TestCommandBackendsByOS(t *testing.T) {
	t.Parallel()

	names := func(backends []Backend) []string {
		out := make([]string, 0, len(backends))
		for _, backend := range backends {
			out = append(out, backend.Name())
		}
		return out
	}

	require.Equal(t, []string{"pw-record", "arecord", "ffmpeg"}, names(CommandBackends("linux", Options{})))
	require.Equal(t, []string{"ffmpeg"}, names(CommandBackends("darwin", Options{})))
	require.Empty(t, CommandBackends("windows", Options{}))
	require.Equal(t, []string{"ffmpeg", "command"}, names(CommandBackends("darwin", Options{Command: "rec -t raw -"})))
}
