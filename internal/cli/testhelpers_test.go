package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/capture"
	"github.com/fmueller/voxtype/internal/clipboard"
	"github.com/fmueller/voxtype/internal/config"
	"github.com/fmueller/voxtype/internal/session"
	"go.uber.org/zap"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func makePCM16WAVForTest(samples []int16, sampleRate int, channels int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(channels))
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*channels*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(channels*bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}

func sine(n, rate int, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

// fakeRecorder hands out the same buffer for every recording.
type fakeRecorder struct {
	mu       sync.Mutex
	buf      audio.Buffer
	startErr error
	starts   int
	active   bool
}

func (r *fakeRecorder) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.starts++
	r.active = true
	return nil
}

func (r *fakeRecorder) Stop() (audio.Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return audio.Buffer{}, capture.ErrNotCapturing
	}
	r.active = false
	return r.buf, nil
}

type fakeTranscriber struct {
	mu      sync.Mutex
	text    string
	err     error
	samples []int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, samples []float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, len(samples))
	return f.text, f.err
}

func (f *fakeTranscriber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

type fakeDeliverer struct {
	mu    sync.Mutex
	err   error
	texts []string
	modes []clipboard.Mode
}

func (d *fakeDeliverer) Deliver(_ context.Context, text string, mode clipboard.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	d.modes = append(d.modes, mode)
	return d.err
}

func (d *fakeDeliverer) delivered() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.texts...)
}

// testApp is an appState whose coordinator runs on fakes.
type testApp struct {
	*appState
	out         *syncBuffer
	recorder    *fakeRecorder
	transcriber *fakeTranscriber
	deliverer   *fakeDeliverer
	coord       *session.Coordinator
}

func newTestApp(t *testing.T, input string) *testApp {
	t.Helper()

	ta := &testApp{
		out:         new(syncBuffer),
		recorder:    &fakeRecorder{buf: audio.Buffer{Samples: sine(16000, 16000, 0.5), SampleRate: 16000}},
		transcriber: &fakeTranscriber{text: "hello world"},
		deliverer:   &fakeDeliverer{},
	}
	app := &appState{
		settings:   config.Default(),
		configPath: filepath.Join(t.TempDir(), "config.yaml"),
		out:        ta.out,
		errOut:     new(syncBuffer),
		in:         strings.NewReader(input),
		isTerminal: func() bool { return true },
		noProgress: true,
	}
	app.coordinatorFn = func(context.Context) (*session.Coordinator, func(), error) {
		deliverer := &transcriptDeliverer{out: app.outWriter(), copyEmpty: app.copyEmpty, logger: zap.NewNop()}
		if !app.printOnly {
			deliverer.next = ta.deliverer
		}
		coord := session.New(session.Options{
			Recorder:  ta.recorder,
			Deliverer: deliverer,
			Config:    app.sessionConfig(),
		})
		coord.SetEngine(ta.transcriber)
		ta.coord = coord
		return coord, func() {}, nil
	}
	ta.appState = app
	return ta
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var errClipboardBroken = errors.New("clipboard command failed")

// toneBackend feeds a stereo tone into the stream as soon as it opens.
type toneBackend struct {
	rate    int
	seconds float64
}

func (b toneBackend) Name() string    { return "tone" }
func (b toneBackend) Available() bool { return true }

func (b toneBackend) NativeConfig(context.Context) (capture.StreamConfig, error) {
	return capture.StreamConfig{SampleRate: b.rate, Channels: 2, Format: capture.FormatF32LE}, nil
}

func (b toneBackend) Open(_ context.Context, cfg capture.StreamConfig, onFrames func([]float32)) (capture.Stream, error) {
	mono := sine(int(float64(cfg.SampleRate)*b.seconds), cfg.SampleRate, 0.4)
	interleaved := make([]float32, 0, 2*len(mono))
	for _, s := range mono {
		interleaved = append(interleaved, s, s)
	}
	onFrames(interleaved)
	return toneStream{}, nil
}

func (b toneBackend) ListDevices(context.Context) (string, error) {
	return "tone generator", nil
}

type toneStream struct{}

func (toneStream) Stop() error { return nil }
