package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fmueller/voxtype/internal/capture"
	"github.com/fmueller/voxtype/internal/capture/portaudio"
	"github.com/fmueller/voxtype/internal/clipboard"
	"github.com/fmueller/voxtype/internal/config"
	"github.com/fmueller/voxtype/internal/logging"
	"github.com/fmueller/voxtype/internal/platform"
	"github.com/fmueller/voxtype/internal/refine"
	"github.com/fmueller/voxtype/internal/session"
	"github.com/fmueller/voxtype/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type appState struct {
	verbose      bool
	jsonLogs     bool
	logFile      string
	noProgress   bool
	configPath   string
	model        string
	modelDir     string
	language     string
	autoDownload bool
	backend      string
	input        string
	inputFormat  string
	outputMode   string
	llm          bool
	preset       string
	demo         bool
	trace        bool
	copyEmpty    bool
	silenceGate  bool
	silenceDBFS  float64
	duration     time.Duration
	immediate    bool
	printOnly    bool

	settings config.Settings
	flags    *pflag.FlagSet
	logger   *zap.Logger
	now      func() time.Time
	out      io.Writer
	errOut   io.Writer
	in       io.Reader
	stdin    *bufio.Reader

	isTerminal    func() bool
	coordinatorFn func(ctx context.Context) (*session.Coordinator, func(), error)
	backendsFn    func() []capture.Backend
}

func NewRootCmd() *cobra.Command {
	defaults := config.Default()
	app := &appState{
		model:        defaults.Whisper.Model,
		language:     defaults.Whisper.Language,
		autoDownload: true,
		backend:      defaults.Capture.Backend,
		outputMode:   string(defaults.Output.Mode),
		preset:       string(defaults.LLM.Preset),
		silenceGate:  true,
		silenceDBFS:  -65,
		settings:     defaults,
		now:          time.Now,
	}

	cmd := &cobra.Command{
		Use:           "voxtype",
		Short:         "Push-to-talk dictation: record, transcribe, refine and paste",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs, File: app.logFile})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			app.out = cmd.OutOrStdout()
			app.errOut = cmd.ErrOrStderr()
			app.flags = cmd.Flags()
			return app.loadSettings(app.flags, cmd.Annotations[annotationConfigOptional] == "")
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runDefault(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindModelFlags(cmd, app)
	bindCaptureFlags(cmd, app)
	bindPipelineFlags(cmd, app)
	cmd.Flags().DurationVar(&app.duration, "duration", 0, "Record duration, e.g. 10s; 0 means interactive start/stop")
	cmd.Flags().BoolVar(&app.immediate, "immediate", false, "Start recording immediately without waiting for Enter")

	cmd.AddCommand(newListenCmd(app))
	cmd.AddCommand(newRecordCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newDevicesCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newLLMCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	flags.StringVar(&app.logFile, "log-file", app.logFile, "Also write logs to this file")
	flags.BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
	flags.StringVar(&app.configPath, "config", app.configPath, "Config file (default: config.yaml in the user config directory)")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.model, "model", app.model, "Model name or model file path")
	flags.StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
	flags.StringVar(&app.language, "language", app.language, "Language code (auto|en|de|...) for transcription")
	flags.BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")
	flags.BoolVar(&app.demo, "demo", app.demo, "Run without a speech model; sessions produce a placeholder text")
}

func bindCaptureFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.backend, "backend", app.backend, "Capture backend: auto|portaudio|pw-record|arecord|ffmpeg|command")
	flags.StringVar(&app.input, "input", app.input, "Input device (run \"voxtype devices\" to list); e.g. node-ID (pw-record), hw:1,0 (arecord), :1 (ffmpeg)")
	flags.StringVar(&app.inputFormat, "input-format", app.inputFormat, "Input format for the ffmpeg backend (pulse|alsa) or sample format of the command backend")
}

func bindPipelineFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.outputMode, "output-mode", app.outputMode, "Delivery: clipboard-only|direct-input|both")
	flags.BoolVar(&app.llm, "llm", app.llm, "Refine transcripts with the configured language model")
	flags.StringVar(&app.preset, "preset", app.preset, "Refinement preset: default|meeting|memo|chat|custom")
	flags.BoolVar(&app.trace, "trace", app.trace, "Print OpenTelemetry spans for every session phase to stderr")
	flags.BoolVar(&app.copyEmpty, "copy-empty", app.copyEmpty, "Deliver blank transcripts")
	flags.BoolVar(&app.silenceGate, "silence-gate", app.silenceGate, "Skip transcription of near-silent audio")
	flags.Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Silence gate threshold in dBFS")
}

// Commands carrying this annotation tolerate a missing --config file.
const annotationConfigOptional = "voxtype/config-optional"

// loadSettings reads the config file and lets explicitly set flags win. A
// file named with --config must exist when strict is set.
func (a *appState) loadSettings(flags *pflag.FlagSet, strict bool) error {
	if flags == nil {
		flags = pflag.NewFlagSet("voxtype", pflag.ContinueOnError)
	}
	path := a.configPath
	required := strict && path != ""
	if path == "" {
		resolved, err := config.DefaultPath()
		if err != nil {
			a.log().Debug("no config directory; using defaults", zap.Error(err))
		}
		path = resolved
	}

	settings, err := config.Load(path, required)
	if err != nil {
		return err
	}

	if flags.Changed("model") {
		settings.Whisper.Model = a.model
	}
	if flags.Changed("model-dir") {
		settings.Whisper.ModelDir = a.modelDir
	}
	if flags.Changed("language") {
		settings.Whisper.Language = a.language
	}
	if flags.Changed("backend") {
		settings.Capture.Backend = a.backend
	}
	if flags.Changed("input") {
		settings.Capture.Input = a.input
	}
	if flags.Changed("input-format") {
		settings.Capture.InputFormat = a.inputFormat
	}
	if flags.Changed("llm") {
		settings.LLM.Enabled = a.llm
	}
	if flags.Changed("output-mode") {
		mode, err := clipboard.ParseMode(a.outputMode)
		if err != nil {
			return err
		}
		settings.Output.Mode = mode
	}
	if flags.Changed("preset") {
		preset, err := refine.ParsePreset(a.preset)
		if err != nil {
			return err
		}
		settings.LLM.Preset = preset
	}
	settings.Whisper.Language = sanitizeLanguage(settings.Whisper.Language)

	a.settings = settings
	a.configPath = path
	return nil
}

func (a *appState) sessionConfig() session.Config {
	cfg := session.Config{
		RefinementEnabled: a.settings.LLM.Enabled,
		OutputMode:        a.settings.Output.Mode,
	}
	if cfg.RefinementEnabled {
		cfg.PromptTemplate = a.settings.LLM.PromptTemplate()
		cfg.Preset = string(a.settings.LLM.Preset)
	}
	return cfg
}

func (a *appState) captureBackends() []capture.Backend {
	if a.backendsFn != nil {
		return a.backendsFn()
	}
	opts := capture.Options{
		Input:       a.settings.Capture.Input,
		InputFormat: a.settings.Capture.InputFormat,
		SampleRate:  a.settings.Capture.SampleRate,
		Channels:    a.settings.Capture.Channels,
		Command:     a.settings.Capture.Command,
	}
	backends := []capture.Backend{portaudio.New()}
	return append(backends, capture.CommandBackends(runtime.GOOS, opts)...)
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.settings.Whisper.ModelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) recordingOutputPath(override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		if err := os.MkdirAll(filepath.Dir(override), 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
		return override, nil
	}

	recordingDir, err := platform.ResolveRecordingDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(recordingDir, 0o755); err != nil {
		return "", fmt.Errorf("create recording directory %s: %w", recordingDir, err)
	}

	return filepath.Join(recordingDir, fmt.Sprintf("recording-%s.wav", a.clock().Format("20060102-150405"))), nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

func (a *appState) errWriter() io.Writer {
	if a.errOut == nil {
		return os.Stderr
	}
	return a.errOut
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
