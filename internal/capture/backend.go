package capture

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	ErrNoInputDevice      = errors.New("no input device available")
	ErrUnsupportedFormat  = errors.New("unsupported input sample format")
	ErrNoBackendAvailable = errors.New("no capture backend available")
)

// Backend opens an input device and feeds interleaved float32 frames to a
// callback until the returned Stream is stopped.
type Backend interface {
	Name() string
	Available() bool
	NativeConfig(ctx context.Context) (StreamConfig, error)
	Open(ctx context.Context, cfg StreamConfig, onFrames func(interleaved []float32)) (Stream, error)
	ListDevices(ctx context.Context) (string, error)
}

// Stream is a running device capture. Stop tears the device down
// synchronously: no callback runs after it returns.
type Stream interface {
	Stop() error
}

// Options tune the command backends.
type Options struct {
	Input       string
	InputFormat string
	SampleRate  int
	Channels    int
	Command     string
}

func SelectBackend(backends []Backend, preferred string) (Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred != "" && preferred != "auto" {
		for _, backend := range backends {
			if backend.Name() == preferred {
				if !backend.Available() {
					return nil, fmt.Errorf("requested backend %q is not available", preferred)
				}
				return backend, nil
			}
		}
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	for _, backend := range backends {
		if backend.Available() {
			return backend, nil
		}
	}

	return nil, ErrNoBackendAvailable
}

// CommandBackends returns the external-recorder backends for goos in
// priority order.
func CommandBackends(goos string, opts Options) []Backend {
	var backends []Backend
	switch goos {
	case "linux":
		backends = []Backend{newPipeWireBackend(opts), newALSABackend(opts), newFFMPEGLinuxBackend(opts)}
	case "darwin":
		backends = []Backend{newFFMPEGMacOSBackend(opts)}
	}
	if strings.TrimSpace(opts.Command) != "" {
		backends = append(backends, newCustomCommandBackend(opts))
	}
	return backends
}

func orderBackends(backends []Backend, preferred string) ([]Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred == "" || preferred == "auto" {
		return backends, nil
	}

	preferredIndex := -1
	for i, backend := range backends {
		if backend.Name() == preferred {
			preferredIndex = i
			break
		}
	}
	if preferredIndex == -1 {
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	ordered := make([]Backend, 0, len(backends))
	ordered = append(ordered, backends[preferredIndex])
	for i, backend := range backends {
		if i == preferredIndex {
			continue
		}
		ordered = append(ordered, backend)
	}

	return ordered, nil
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func commandOutput(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed != "" {
			return "", fmt.Errorf("%s %s failed: %w (%s)", name, strings.Join(args, " "), err, trimmed)
		}
		return "", fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return trimmed, nil
}
