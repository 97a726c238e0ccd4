package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fmueller/voxtype/internal/audio"
)

var (
	ErrAlreadyCapturing = errors.New("capture already running")
	ErrNotCapturing     = errors.New("capture not running")
)

// Session owns the input stream and the live sample buffer for one
// recording at a time.
type Session struct {
	backends  []Backend
	preferred string
	logger    *zap.Logger

	// streamMu serializes Start and Stop. It is never taken by the device
	// callback.
	streamMu sync.Mutex
	stream   Stream
	backend  string
	config   StreamConfig

	// bufMu guards the live buffer; the device callback holds it only for
	// the append.
	bufMu   sync.Mutex
	samples []float32
	scratch []float32
}

func NewSession(backends []Backend, preferred string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{backends: backends, preferred: preferred, logger: logger}
}

// Start opens the first usable backend at its native configuration and
// begins buffering mono samples.
func (s *Session) Start(ctx context.Context) error {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	if s.stream != nil {
		return ErrAlreadyCapturing
	}

	ordered, err := orderBackends(s.backends, s.preferred)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoInputDevice, err)
	}

	s.bufMu.Lock()
	s.samples = nil
	s.bufMu.Unlock()

	var errs []error
	for _, backend := range ordered {
		if !backend.Available() {
			errs = append(errs, fmt.Errorf("%s: backend is not available", backend.Name()))
			continue
		}

		cfg, err := backend.NativeConfig(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}

		stream, err := backend.Open(ctx, cfg, s.appender(cfg.Channels))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return errors.Join(errs...)
			}
			continue
		}

		s.stream = stream
		s.backend = backend.Name()
		s.config = cfg
		s.logger.Debug(
			"capture started",
			zap.String("backend", backend.Name()),
			zap.Int("sample_rate", cfg.SampleRate),
			zap.Int("channels", cfg.Channels),
			zap.String("format", string(cfg.Format)),
		)
		return nil
	}

	if len(errs) == 0 {
		return ErrNoInputDevice
	}
	joined := errors.Join(errs...)
	if errors.Is(joined, ErrUnsupportedFormat) {
		return fmt.Errorf("open input device: %w", joined)
	}
	return fmt.Errorf("%w: %w", ErrNoInputDevice, joined)
}

func (s *Session) appender(channels int) func([]float32) {
	return func(interleaved []float32) {
		s.bufMu.Lock()
		defer s.bufMu.Unlock()
		if channels == 1 {
			s.samples = append(s.samples, interleaved...)
			return
		}
		s.scratch = audio.Downmix(s.scratch[:0], interleaved, channels)
		s.samples = append(s.samples, s.scratch...)
	}
}

// Stop tears the stream down, then hands the captured samples to the
// caller and clears the live buffer. A stream teardown error is returned
// together with whatever was captured.
func (s *Session) Stop() (audio.Buffer, error) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()

	if s.stream == nil {
		return audio.Buffer{}, ErrNotCapturing
	}

	stopErr := s.stream.Stop()
	rate := s.config.SampleRate
	backend := s.backend
	s.stream = nil

	s.bufMu.Lock()
	samples := s.samples
	s.samples = nil
	s.bufMu.Unlock()

	buf := audio.Buffer{Samples: samples, SampleRate: rate}
	s.logger.Debug(
		"capture stopped",
		zap.String("backend", backend),
		zap.Int("samples", buf.Len()),
		zap.Duration("duration", buf.Duration()),
	)

	if stopErr != nil {
		return buf, fmt.Errorf("stop %s: %w", backend, stopErr)
	}
	return buf, nil
}

// SampleRate is the rate of the current or most recent capture.
func (s *Session) SampleRate() int {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	return s.config.SampleRate
}

// Backend names the backend of the current or most recent capture.
func (s *Session) Backend() string {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	return s.backend
}
