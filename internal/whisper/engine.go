package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/platform"
)

// EnginePathEnv names a whisper-cli binary to use instead of the bundled one.
const EnginePathEnv = "VOXTYPE_WHISPER_PATH"

var (
	ErrEngineNotFound = errors.New("whisper engine not found")
	ErrNoSamples      = errors.New("no samples to transcribe")
)

// Engine transcribes TargetSampleRate mono samples with a whisper-cli
// binary. Every call hands the engine a fresh WAV in its own scratch
// directory, so concurrent calls never share files.
type Engine struct {
	Executable string
	ModelPath  string
	Language   string
	// ScratchDir holds the per-call directories; empty means os.TempDir.
	ScratchDir string
	Logger     *zap.Logger
}

// NewEngine binds the whisper-cli at executable to an installed model.
func NewEngine(executable string, model ResolvedModel, language string, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(model.Path) == "" {
		return nil, errors.New("model path is required")
	}
	if model.NeedsDownload {
		return nil, fmt.Errorf("model %s is not installed at %s", model.Name, model.Path)
	}

	return &Engine{
		Executable: executable,
		ModelPath:  model.Path,
		Language:   language,
		Logger:     logger,
	}, nil
}

// LocateEngine finds whisper-cli: EnginePathEnv first, then the install
// locations next to the running binary.
func LocateEngine() (string, error) {
	if override := strings.TrimSpace(os.Getenv(EnginePathEnv)); override != "" {
		if err := checkExecutable(override); err != nil {
			return "", fmt.Errorf("%s is not usable: %w", EnginePathEnv, err)
		}
		return override, nil
	}

	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve voxtype executable path: %w", err)
	}
	return FindEngine(self)
}

// FindEngine returns the first executable whisper-cli among the install
// locations relative to selfExecutable.
func FindEngine(selfExecutable string) (string, error) {
	for _, candidate := range engineSearchPaths(selfExecutable, platform.CurrentRuntime()) {
		if checkExecutable(candidate) == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w near %s; reinstall voxtype or set %s (expected ../libexec/whisper/%s)", ErrEngineNotFound, selfExecutable, EnginePathEnv, engineBinaryName(runtime.GOOS))
}

func engineSearchPaths(selfExecutable string, rt platform.Runtime) []string {
	binDir := filepath.Dir(selfExecutable)
	name := engineBinaryName(rt.OS)
	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", name),
		filepath.Join(binDir, "libexec", "whisper", name),
		filepath.Join(binDir, "packaging", "whisper", rt.OS+"_"+rt.Arch, name),
		filepath.Join(binDir, name),
	}
}

func (e *Engine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoSamples
	}
	if err := checkExecutable(e.Executable); err != nil {
		return "", fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	scratch, err := os.MkdirTemp(e.ScratchDir, "voxtype-whisper-")
	if err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	buf := audio.Buffer{Samples: samples, SampleRate: audio.TargetSampleRate}
	wavPath := filepath.Join(scratch, "speech.wav")
	if err := writeSpeech(wavPath, buf); err != nil {
		return "", err
	}

	outBase := filepath.Join(scratch, "speech")
	args := e.args(wavPath, outBase)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Executable, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	e.log().Debug(
		"running whisper engine",
		zap.String("engine", e.Executable),
		zap.Strings("args", args),
		zap.Duration("audio", buf.Duration()),
	)
	if err := cmd.Run(); err != nil {
		return "", e.explain(err, stderr.String())
	}

	content, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

func (e *Engine) args(wavPath, outBase string) []string {
	args := []string{"-m", e.ModelPath, "-f", wavPath, "-nt", "-otxt", "-of", outBase}
	if lang := strings.TrimSpace(e.Language); lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}
	return args
}

// engineFailures maps known whisper-cli crash signatures to an operator hint.
var engineFailures = []struct {
	signatures []string
	hint       string
}{
	{
		signatures: []string{
			"error while loading shared libraries",
			"cannot open shared object file",
			"dyld: library not loaded",
			"image not found",
		},
		hint: "the engine is missing required shared libraries; reinstall voxtype or rebuild whisper-cli with BUILD_SHARED_LIBS=OFF",
	},
	{
		signatures: []string{"illegal instruction"},
		hint:       "the engine crashed with an illegal CPU instruction; set " + EnginePathEnv + " to a whisper-cli built for this CPU",
	},
}

func (e *Engine) explain(runErr error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	haystack := strings.ToLower(detail + "\n" + runErr.Error())
	for _, failure := range engineFailures {
		for _, signature := range failure.signatures {
			if strings.Contains(haystack, signature) {
				return fmt.Errorf("whisper engine %s failed: %s: %w", e.Executable, failure.hint, runErr)
			}
		}
	}
	if detail == "" {
		return fmt.Errorf("whisper transcribe failed: %w", runErr)
	}
	return fmt.Errorf("whisper transcribe failed: %w (%s)", runErr, detail)
}

func (e *Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func writeSpeech(path string, buf audio.Buffer) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create speech file: %w", err)
	}
	if err := audio.WriteWAV(file, buf); err != nil {
		_ = file.Close()
		return fmt.Errorf("write speech file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close speech file: %w", err)
	}
	return nil
}

func engineBinaryName(goos string) string {
	if goos == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
