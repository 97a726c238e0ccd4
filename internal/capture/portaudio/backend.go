// Package portaudio captures from the system default input device through
// the PortAudio library.
package portaudio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/fmueller/voxtype/internal/capture"
)

const maxChannels = 2

// Backend pairs every Initialize with a Terminate; PortAudio reference
// counts them process-wide.
type Backend struct{}

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string {
	return "portaudio"
}

func (b *Backend) Available() bool {
	if err := pa.Initialize(); err != nil {
		return false
	}
	defer pa.Terminate()

	dev, err := pa.DefaultInputDevice()
	return err == nil && dev != nil && dev.MaxInputChannels > 0
}

func (b *Backend) NativeConfig(context.Context) (capture.StreamConfig, error) {
	if err := pa.Initialize(); err != nil {
		return capture.StreamConfig{}, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer pa.Terminate()

	dev, err := defaultInput()
	if err != nil {
		return capture.StreamConfig{}, err
	}
	return capture.StreamConfig{
		SampleRate: int(dev.DefaultSampleRate),
		Channels:   min(dev.MaxInputChannels, maxChannels),
		Format:     capture.FormatF32LE,
	}, nil
}

func (b *Backend) Open(_ context.Context, cfg capture.StreamConfig, onFrames func([]float32)) (capture.Stream, error) {
	if cfg.Format != capture.FormatF32LE {
		return nil, fmt.Errorf("%w: portaudio delivers float32, got %q", capture.ErrUnsupportedFormat, cfg.Format)
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	dev, err := defaultInput()
	if err != nil {
		_ = pa.Terminate()
		return nil, err
	}

	params := pa.LowLatencyParameters(dev, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)

	stream, err := pa.OpenStream(params, func(in []float32) {
		onFrames(in)
	})
	if err != nil {
		_ = pa.Terminate()
		return nil, fmt.Errorf("%w: open %q: %v", capture.ErrUnsupportedFormat, dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = pa.Terminate()
		return nil, fmt.Errorf("start %q: %w", dev.Name, err)
	}

	return &paStream{stream: stream}, nil
}

func (b *Backend) ListDevices(context.Context) (string, error) {
	if err := pa.Initialize(); err != nil {
		return "", fmt.Errorf("initialize portaudio: %w", err)
	}
	defer pa.Terminate()

	devices, err := pa.Devices()
	if err != nil {
		return "", err
	}
	def, _ := pa.DefaultInputDevice()

	var lines []string
	for _, dev := range devices {
		if dev.MaxInputChannels == 0 {
			continue
		}
		marker := " "
		if def != nil && dev.Name == def.Name && dev.HostApi == def.HostApi {
			marker = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %s (%s, %d ch, %.0f Hz)", marker, dev.Name, dev.HostApi.Name, dev.MaxInputChannels, dev.DefaultSampleRate))
	}
	if len(lines) == 0 {
		return "", capture.ErrNoInputDevice
	}
	return strings.Join(lines, "\n"), nil
}

func defaultInput() (*pa.DeviceInfo, error) {
	dev, err := pa.DefaultInputDevice()
	if err != nil || dev == nil || dev.MaxInputChannels == 0 {
		return nil, fmt.Errorf("%w: %v", capture.ErrNoInputDevice, err)
	}
	return dev, nil
}

type paStream struct {
	once   sync.Once
	stream *pa.Stream
	err    error
}

// Stop returns once PortAudio has stopped invoking the callback.
func (s *paStream) Stop() error {
	s.once.Do(func() {
		stopErr := s.stream.Stop()
		closeErr := s.stream.Close()
		termErr := pa.Terminate()
		switch {
		case stopErr != nil:
			s.err = stopErr
		case closeErr != nil:
			s.err = closeErr
		default:
			s.err = termErr
		}
	})
	return s.err
}
