package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mattn/go-shellwords"
)

const (
	defaultCommandRate     = 48000
	defaultCommandChannels = 1
	readChunkBytes         = 4096
	stopKillTimeout        = 2 * time.Second
)

// commandBackend streams raw PCM from an external recorder's stdout.
type commandBackend struct {
	name    string
	binary  string
	opts    Options
	args    func(cfg StreamConfig) []string
	devices func(ctx context.Context) (string, error)
}

func (b *commandBackend) Name() string {
	return b.name
}

func (b *commandBackend) Available() bool {
	return commandAvailable(b.binary)
}

func (b *commandBackend) NativeConfig(context.Context) (StreamConfig, error) {
	cfg := StreamConfig{
		SampleRate: defaultCommandRate,
		Channels:   defaultCommandChannels,
		Format:     FormatS16LE,
	}
	if b.opts.SampleRate > 0 {
		cfg.SampleRate = b.opts.SampleRate
	}
	if b.opts.Channels > 0 {
		cfg.Channels = b.opts.Channels
	}
	if err := cfg.validate(); err != nil {
		return StreamConfig{}, err
	}
	return cfg, nil
}

func (b *commandBackend) Open(_ context.Context, cfg StreamConfig, onFrames func([]float32)) (Stream, error) {
	if b.args == nil {
		return nil, fmt.Errorf("%s: no recorder command configured", b.name)
	}
	decoder, err := NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(b.binary, b.args(cfg)...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", b.name, err)
	}

	stream := &commandStream{cmd: cmd, done: make(chan struct{})}
	go stream.pump(stdout, decoder, onFrames)
	return stream, nil
}

func (b *commandBackend) ListDevices(ctx context.Context) (string, error) {
	if b.devices == nil {
		return "", fmt.Errorf("%s does not support device listing", b.name)
	}
	return b.devices(ctx)
}

type commandStream struct {
	cmd      *exec.Cmd
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
	readErr  error
}

func (s *commandStream) pump(stdout io.Reader, decoder *Decoder, onFrames func([]float32)) {
	defer close(s.done)

	buf := make([]byte, readChunkBytes)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if frames := decoder.Decode(buf[:n]); len(frames) > 0 {
				onFrames(frames)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.readErr = err
			}
			return
		}
	}
}

// Stop interrupts the recorder, drains its remaining output and reaps it.
func (s *commandStream) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop()
	})
	return s.stopErr
}

func (s *commandStream) stop() error {
	exitedEarly := false
	select {
	case <-s.done:
		exitedEarly = true
	default:
	}

	stopSignalSent := false
	if !exitedEarly {
		stopSignalSent = s.cmd.Process.Signal(os.Interrupt) == nil
		timer := time.NewTimer(stopKillTimeout)
		select {
		case <-s.done:
			timer.Stop()
		case <-timer.C:
			_ = s.cmd.Process.Kill()
			<-s.done
		}
	}

	err := s.cmd.Wait()
	if s.readErr != nil {
		return fmt.Errorf("read recorder output: %w", s.readErr)
	}
	if err == nil || stopSignalSent || stoppedBySignal(err) {
		return nil
	}
	return err
}

func stoppedBySignal(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	return ok && status.Signaled()
}

func newPipeWireBackend(opts Options) Backend {
	return &commandBackend{
		name:   "pw-record",
		binary: "pw-record",
		opts:   opts,
		args: func(cfg StreamConfig) []string {
			args := []string{"--rate", strconv.Itoa(cfg.SampleRate), "--channels", strconv.Itoa(cfg.Channels), "--format", "s16"}
			if opts.Input != "" {
				args = append(args, "--target", opts.Input)
			}
			return append(args, "-")
		},
		devices: func(ctx context.Context) (string, error) {
			if commandAvailable("pw-cli") {
				return commandOutput(ctx, "pw-cli", "ls", "Node")
			}
			if out, err := commandOutput(ctx, "pw-record", "--list-targets"); err == nil {
				return out, nil
			}
			if commandAvailable("pactl") {
				return commandOutput(ctx, "pactl", "list", "short", "sources")
			}
			return "", errors.New("no pipewire device listing command available")
		},
	}
}

func newALSABackend(opts Options) Backend {
	return &commandBackend{
		name:   "arecord",
		binary: "arecord",
		opts:   opts,
		args: func(cfg StreamConfig) []string {
			args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", strconv.Itoa(cfg.SampleRate), "-c", strconv.Itoa(cfg.Channels)}
			if opts.Input != "" {
				args = append(args, "-D", opts.Input)
			}
			return args
		},
		devices: func(ctx context.Context) (string, error) {
			return commandOutput(ctx, "arecord", "-L")
		},
	}
}

func newFFMPEGLinuxBackend(opts Options) Backend {
	return newFFMPEGBackend(opts, "pulse", "default", func(ctx context.Context) (string, error) {
		var sections []string
		if commandAvailable("pactl") {
			if out, err := commandOutput(ctx, "pactl", "list", "short", "sources"); err == nil {
				sections = append(sections, "PulseAudio/PipeWire sources:\n"+out)
			} else {
				sections = append(sections, "PulseAudio/PipeWire sources: "+err.Error())
			}
		}
		if commandAvailable("arecord") {
			if out, err := commandOutput(ctx, "arecord", "-L"); err == nil {
				sections = append(sections, "ALSA devices:\n"+out)
			} else {
				sections = append(sections, "ALSA devices: "+err.Error())
			}
		}
		if len(sections) == 0 {
			return "", errors.New("no device listing command available")
		}
		return strings.Join(sections, "\n\n"), nil
	})
}

func newFFMPEGMacOSBackend(opts Options) Backend {
	return newFFMPEGBackend(opts, "avfoundation", ":default", func(ctx context.Context) (string, error) {
		cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
		// ffmpeg exits non-zero after printing the device list.
		out, _ := cmd.CombinedOutput()
		listing := strings.TrimSpace(string(out))
		if listing == "" {
			return "", errors.New("ffmpeg returned no avfoundation devices")
		}
		return listing, nil
	})
}

func newFFMPEGBackend(opts Options, inputFormat, defaultInput string, devices func(context.Context) (string, error)) Backend {
	if opts.InputFormat != "" {
		inputFormat = opts.InputFormat
	}
	input := defaultInput
	if opts.Input != "" {
		input = opts.Input
	}

	return &commandBackend{
		name:   "ffmpeg",
		binary: "ffmpeg",
		opts:   opts,
		args: func(cfg StreamConfig) []string {
			return []string{
				"-nostdin", "-hide_banner", "-loglevel", "error",
				"-f", inputFormat, "-i", input,
				"-ac", strconv.Itoa(cfg.Channels),
				"-ar", strconv.Itoa(cfg.SampleRate),
				"-f", "s16le", "-",
			}
		},
		devices: devices,
	}
}

// customCommandBackend runs a user supplied recorder command line. The
// command must write raw interleaved PCM in the configured format to stdout.
type customCommandBackend struct {
	commandBackend
	argv   []string
	format SampleFormat
}

func newCustomCommandBackend(opts Options) Backend {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	argv, err := parser.Parse(opts.Command)

	b := &customCommandBackend{
		commandBackend: commandBackend{name: "command", opts: opts},
		format:         FormatS16LE,
	}
	if opts.InputFormat != "" {
		b.format = SampleFormat(opts.InputFormat)
	}
	if err == nil && len(argv) > 0 {
		b.argv = argv
		b.binary = argv[0]
		b.args = func(StreamConfig) []string { return argv[1:] }
	}
	return b
}

func (b *customCommandBackend) Available() bool {
	return len(b.argv) > 0 && commandAvailable(b.binary)
}

func (b *customCommandBackend) NativeConfig(ctx context.Context) (StreamConfig, error) {
	if len(b.argv) == 0 {
		return StreamConfig{}, fmt.Errorf("parse capture command %q: no program", b.opts.Command)
	}
	cfg, err := b.commandBackend.NativeConfig(ctx)
	if err != nil {
		return StreamConfig{}, err
	}
	cfg.Format = b.format
	if err := cfg.validate(); err != nil {
		return StreamConfig{}, err
	}
	return cfg, nil
}

func (b *customCommandBackend) ListDevices(context.Context) (string, error) {
	return "custom command: " + strings.Join(b.argv, " "), nil
}
