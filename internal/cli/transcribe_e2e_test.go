//go:build e2e

package cli

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fmueller/voxtype/internal/whisper"
	"github.com/stretchr/testify/require"
)

const (
	e2eWhisperPathEnv = "VOXTYPE_E2E_WHISPER_PATH"
	e2eModelDirEnv    = "VOXTYPE_E2E_MODEL_DIR"
)

// setupE2E points voxtype at a real whisper-cli and installs the tiny model.
func setupE2E(t *testing.T) string {
	t.Helper()

	whisperPath := strings.TrimSpace(os.Getenv(e2eWhisperPathEnv))
	if whisperPath == "" {
		t.Skip("set VOXTYPE_E2E_WHISPER_PATH to run e2e test")
	}

	modelDir := strings.TrimSpace(os.Getenv(e2eModelDirEnv))
	if modelDir == "" {
		modelDir = t.TempDir()
	}

	t.Setenv(whisper.EnginePathEnv, whisperPath)
	t.Setenv("VOXTYPE_HISTORY_ENABLED", "false")

	_, setupStderr, err := runRootCommand(context.Background(), []string{
		"setup",
		"--model", "tiny",
		"--model-dir", modelDir,
		"--no-progress",
	})
	require.NoErrorf(t, err, "setup command failed: %s", setupStderr)
	return modelDir
}

func TestTranscribeBlankAudioEndToEnd(t *testing.T) {
	modelDir := setupE2E(t)

	silentWAV := filepath.Join(t.TempDir(), "silent.wav")
	require.NoError(t, os.WriteFile(silentWAV, makePCM16WAVForTest(make([]int16, 16000), 16000, 1), 0o644))

	stdout, stderr, err := runRootCommand(context.Background(), []string{
		"transcribe",
		"--model", "tiny",
		"--model-dir", modelDir,
		"--no-progress",
		silentWAV,
	})
	require.NoErrorf(t, err, "transcribe command failed: %s", stderr)
	require.Equal(t, blankAudioToken, strings.TrimSpace(stdout))
}

func TestTranscribeSilenceGateBypassEndToEnd(t *testing.T) {
	modelDir := setupE2E(t)

	silentWAV := filepath.Join(t.TempDir(), "silent.wav")
	require.NoError(t, os.WriteFile(silentWAV, makePCM16WAVForTest(make([]int16, 16000), 16000, 1), 0o644))

	_, stderr, err := runRootCommand(context.Background(), []string{
		"transcribe",
		"--model", "tiny",
		"--model-dir", modelDir,
		"--silence-gate=false",
		"--no-progress",
		silentWAV,
	})
	require.NoErrorf(t, err, "transcribe command failed: %s", stderr)
}

func TestTranscribeResamplesNativeRateInputEndToEnd(t *testing.T) {
	modelDir := setupE2E(t)

	const rate = 44100
	samples := make([]int16, rate)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*220*float64(i)/rate))
	}
	toneWAV := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, os.WriteFile(toneWAV, makePCM16WAVForTest(samples, rate, 1), 0o644))

	for _, language := range []string{"en", "auto"} {
		t.Run(language, func(t *testing.T) {
			_, stderr, err := runRootCommand(context.Background(), []string{
				"transcribe",
				"--model", "tiny",
				"--model-dir", modelDir,
				"--language", language,
				"--no-progress",
				toneWAV,
			})
			require.NoErrorf(t, err, "transcribe command failed with --language %s: %s", language, stderr)
		})
	}
}

func runRootCommand(ctx context.Context, args []string) (stdout string, stderr string, err error) {
	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetContext(ctx)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}
