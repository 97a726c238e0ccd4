package capture

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	mu      sync.Mutex
	stopped bool
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

// fakeBackend records the callback so tests can push frames as if the
// device delivered them.
type fakeBackend struct {
	name       string
	cfg        StreamConfig
	openErr    error
	mu         sync.Mutex
	opens      int
	onFrames   func([]float32)
	lastStream *fakeStream
}

func (b *fakeBackend) Name() string    { return b.name }
func (b *fakeBackend) Available() bool { return true }
func (b *fakeBackend) NativeConfig(context.Context) (StreamConfig, error) {
	return b.cfg, b.cfg.validate()
}
func (b *fakeBackend) Open(_ context.Context, _ StreamConfig, onFrames func([]float32)) (Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opens++
	b.onFrames = onFrames
	b.lastStream = &fakeStream{}
	return b.lastStream, nil
}
func (b *fakeBackend) ListDevices(context.Context) (string, error) { return b.name, nil }

func (b *fakeBackend) push(frames []float32) {
	b.mu.Lock()
	cb := b.onFrames
	b.mu.Unlock()
	cb(frames)
}

func TestSessionDownmixesAndKeepsOrder(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{name: "fake", cfg: StreamConfig{SampleRate: 48000, Channels: 2, Format: FormatF32LE}}
	session := NewSession([]Backend{backend}, "auto", nil)

	require.NoError(t, session.Start(context.Background()))
	require.Equal(t, 48000, session.SampleRate())

	backend.push([]float32{1, 0, 0.5, 0.5})
	backend.push([]float32{-1, -1})

	buf, err := session.Stop()
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, 0.5, -1}, buf.Samples)
	require.Equal(t, 48000, buf.SampleRate)
	require.True(t, backend.lastStream.stopped)
	_, err = session.Stop()
	require.ErrorIs(t, err, ErrNotCapturing)
}

func TestSessionStartTwiceDoesNotOpenSecondStream(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{name: "fake", cfg: StreamConfig{SampleRate: 16000, Channels: 1, Format: FormatS16LE}}
	session := NewSession([]Backend{backend}, "", nil)

	require.NoError(t, session.Start(context.Background()))
	require.ErrorIs(t, session.Start(context.Background()), ErrAlreadyCapturing)
	require.Equal(t, 1, backend.opens)
}

func TestSessionStopWithoutStart(t *testing.T) {
	t.Parallel()

	session := NewSession([]Backend{&fakeBackend{name: "fake"}}, "", nil)
	_, err := session.Stop()
	require.ErrorIs(t, err, ErrNotCapturing)
}

func TestSessionClearsBufferBetweenRecordings(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{name: "fake", cfg: StreamConfig{SampleRate: 16000, Channels: 1, Format: FormatF32LE}}
	session := NewSession([]Backend{backend}, "", nil)

	require.NoError(t, session.Start(context.Background()))
	backend.push([]float32{0.1, 0.2})
	first, err := session.Stop()
	require.NoError(t, err)
	require.Len(t, first.Samples, 2)

	require.NoError(t, session.Start(context.Background()))
	backend.push([]float32{0.3})
	second, err := session.Stop()
	require.NoError(t, err)
	require.Equal(t, []float32{0.3}, second.Samples)
	require.Equal(t, []float32{0.1, 0.2}, first.Samples)
}

func TestSessionFallsBackToNextBackend(t *testing.T) {
	t.Parallel()

	broken := &fakeBackend{name: "broken", cfg: StreamConfig{SampleRate: 44100, Channels: 1, Format: FormatF32LE}, openErr: errors.New("device busy")}
	working := &fakeBackend{name: "working", cfg: StreamConfig{SampleRate: 16000, Channels: 1, Format: FormatF32LE}}
	session := NewSession([]Backend{broken, working}, "auto", nil)

	require.NoError(t, session.Start(context.Background()))
	require.Equal(t, "working", session.Backend())
	require.Equal(t, 16000, session.SampleRate())
}

func TestSessionReportsDeviceErrors(t *testing.T) {
	t.Parallel()

	session := NewSession([]Backend{
		&fakeBackend{name: "busy", cfg: StreamConfig{SampleRate: 16000, Channels: 1, Format: FormatF32LE}, openErr: errors.New("device busy")},
	}, "auto", nil)
	require.ErrorIs(t, session.Start(context.Background()), ErrNoInputDevice)

	session = NewSession([]Backend{
		&fakeBackend{name: "odd", cfg: StreamConfig{SampleRate: 16000, Channels: 1, Format: "f64be"}},
	}, "auto", nil)
	require.ErrorIs(t, session.Start(context.Background()), ErrUnsupportedFormat)

	session = NewSession(nil, "auto", nil)
	require.ErrorIs(t, session.Start(context.Background()), ErrNoInputDevice)
}
