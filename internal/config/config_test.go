package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxtype/internal/clipboard"
	"github.com/fmueller/voxtype/internal/refine"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	settings, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)
	require.Equal(t, Default(), settings)
}

func TestLoadMissingRequiredFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read config")
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
whisper:
  model: small
llm:
  enabled: true
  provider: openai-compat
  url: http://127.0.0.1:8080
  preset: Meeting
output:
  mode: paste
capture:
  backend: arecord
  sample_rate: 44100
`)

	settings, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, "small", settings.Whisper.Model)
	require.Equal(t, "auto", settings.Whisper.Language)
	require.True(t, settings.LLM.Enabled)
	require.Equal(t, refine.ProviderOpenAI, settings.LLM.Provider)
	require.Equal(t, "http://127.0.0.1:8080", settings.LLM.URL)
	require.Equal(t, refine.DefaultModel, settings.LLM.Model)
	require.Equal(t, refine.PresetMeeting, settings.LLM.Preset)
	require.Equal(t, clipboard.ModeDirectInput, settings.Output.Mode)
	require.Equal(t, "arecord", settings.Capture.Backend)
	require.Equal(t, 44100, settings.Capture.SampleRate)
	require.True(t, settings.History.Enabled)
}

func TestLoadRejectsUnknownEnumValues(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"mode":     "output:\n  mode: telepathy\n",
		"preset":   "llm:\n  preset: sonnet\n",
		"provider": "llm:\n  provider: carrier-pigeon\n",
	}
	for name, body := range cases {
		name, body := name, body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(writeConfig(t, body), true)
			require.Error(t, err)
			require.Contains(t, err.Error(), "decode config")
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "llm:\n  enabled: true\n  url: \"\"\ncapture:\n  channels: -1\n")

	_, err := Load(path, true)
	require.Error(t, err)
	require.Contains(t, err.Error(), "llm.url is required")
	require.Contains(t, err.Error(), "capture.channels must not be negative")
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "llm:\n  model: llama3\noutput:\n  mode: both\n")
	t.Setenv("VOXTYPE_LLM_MODEL", "qwen2.5")
	t.Setenv("VOXTYPE_LLM_ENABLED", "true")
	t.Setenv("VOXTYPE_OUTPUT_MODE", "clipboard")

	settings, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, "qwen2.5", settings.LLM.Model)
	require.True(t, settings.LLM.Enabled)
	require.Equal(t, clipboard.ModeClipboardOnly, settings.Output.Mode)
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	t.Parallel()

	settings := Default()
	settings.LLM.Enabled = true
	settings.LLM.Preset = refine.PresetCustom
	settings.LLM.CustomPrompt = "Fix typos only: {input}"
	settings.Capture.Command = "sox -d -t raw -"

	path := filepath.Join(t.TempDir(), "nested", FileName)
	require.NoError(t, Save(path, settings))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)
}

func TestPromptTemplateFollowsPreset(t *testing.T) {
	t.Parallel()

	llm := Default().LLM
	require.Equal(t, refine.PresetDefault.Template(), llm.PromptTemplate())

	llm.Preset = refine.PresetCustom
	require.Equal(t, refine.PresetDefault.Template(), llm.PromptTemplate())

	llm.CustomPrompt = "Summarize: {input}"
	require.Equal(t, "Summarize: {input}", llm.PromptTemplate())
}
