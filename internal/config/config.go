// Package config loads voxtype settings from config.yaml, VOXTYPE_*
// environment variables and built-in defaults, in increasing priority
// order: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fmueller/voxtype/internal/clipboard"
	"github.com/fmueller/voxtype/internal/platform"
	"github.com/fmueller/voxtype/internal/refine"
	"github.com/fmueller/voxtype/internal/whisper"
)

const (
	FileName  = "config.yaml"
	EnvPrefix = "VOXTYPE"
)

type Settings struct {
	Whisper  WhisperSettings  `mapstructure:"whisper" yaml:"whisper"`
	LLM      LLMSettings      `mapstructure:"llm" yaml:"llm"`
	Output   OutputSettings   `mapstructure:"output" yaml:"output"`
	Shortcut ShortcutSettings `mapstructure:"shortcut" yaml:"shortcut"`
	Capture  CaptureSettings  `mapstructure:"capture" yaml:"capture"`
	History  HistorySettings  `mapstructure:"history" yaml:"history"`
	Notify   NotifySettings   `mapstructure:"notify" yaml:"notify"`
}

type WhisperSettings struct {
	Model    string `mapstructure:"model" yaml:"model"`
	Language string `mapstructure:"language" yaml:"language"`
	ModelDir string `mapstructure:"model_dir" yaml:"model_dir,omitempty"`
}

type LLMSettings struct {
	Enabled      bool            `mapstructure:"enabled" yaml:"enabled"`
	Provider     refine.Provider `mapstructure:"provider" yaml:"provider"`
	URL          string          `mapstructure:"url" yaml:"url"`
	Model        string          `mapstructure:"model" yaml:"model"`
	APIKey       string          `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Preset       refine.Preset   `mapstructure:"preset" yaml:"preset"`
	CustomPrompt string          `mapstructure:"custom_prompt" yaml:"custom_prompt,omitempty"`
}

// PromptTemplate is the template refinement runs with.
func (s LLMSettings) PromptTemplate() string {
	return refine.PromptTemplate(s.Preset, s.CustomPrompt)
}

type OutputSettings struct {
	Mode clipboard.Mode `mapstructure:"mode" yaml:"mode"`
}

type ShortcutSettings struct {
	RecordingToggle string `mapstructure:"recording_toggle" yaml:"recording_toggle"`
}

type CaptureSettings struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Input       string `mapstructure:"input" yaml:"input,omitempty"`
	InputFormat string `mapstructure:"input_format" yaml:"input_format,omitempty"`
	Command     string `mapstructure:"command" yaml:"command,omitempty"`
	SampleRate  int    `mapstructure:"sample_rate" yaml:"sample_rate,omitempty"`
	Channels    int    `mapstructure:"channels" yaml:"channels,omitempty"`
}

type HistorySettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"`
}

type NotifySettings struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

func Default() Settings {
	return Settings{
		Whisper: WhisperSettings{Model: whisper.DefaultModel, Language: "auto"},
		LLM: LLMSettings{
			Provider: refine.ProviderOllama,
			URL:      refine.DefaultURL,
			Model:    refine.DefaultModel,
			Preset:   refine.PresetDefault,
		},
		Output:   OutputSettings{Mode: clipboard.ModeClipboardOnly},
		Shortcut: ShortcutSettings{RecordingToggle: "Ctrl+Space"},
		Capture:  CaptureSettings{Backend: "auto"},
		History:  HistorySettings{Enabled: true},
	}
}

// DefaultPath is config.yaml in the platform config directory.
func DefaultPath() (string, error) {
	dir, err := platform.ResolveConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads path over the defaults. A missing file is not an error unless
// required is set.
func Load(path string, required bool) (Settings, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if !missing || required {
				return Settings{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(decodeHook())); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (s Settings) Validate() error {
	var errs []error
	if s.LLM.Enabled && strings.TrimSpace(s.LLM.URL) == "" {
		errs = append(errs, errors.New("llm.url is required when llm.enabled is true"))
	}
	if s.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate must not be negative, got %d", s.Capture.SampleRate))
	}
	if s.Capture.Channels < 0 {
		errs = append(errs, fmt.Errorf("capture.channels must not be negative, got %d", s.Capture.Channels))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Save writes settings as YAML, creating the parent directory.
func Save(path string, settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	// May contain an API key.
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("whisper.model", d.Whisper.Model)
	v.SetDefault("whisper.language", d.Whisper.Language)
	v.SetDefault("whisper.model_dir", d.Whisper.ModelDir)
	v.SetDefault("llm.enabled", d.LLM.Enabled)
	v.SetDefault("llm.provider", string(d.LLM.Provider))
	v.SetDefault("llm.url", d.LLM.URL)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.preset", string(d.LLM.Preset))
	v.SetDefault("llm.custom_prompt", d.LLM.CustomPrompt)
	v.SetDefault("output.mode", string(d.Output.Mode))
	v.SetDefault("shortcut.recording_toggle", d.Shortcut.RecordingToggle)
	v.SetDefault("capture.backend", d.Capture.Backend)
	v.SetDefault("capture.input", d.Capture.Input)
	v.SetDefault("capture.input_format", d.Capture.InputFormat)
	v.SetDefault("capture.command", d.Capture.Command)
	v.SetDefault("capture.sample_rate", d.Capture.SampleRate)
	v.SetDefault("capture.channels", d.Capture.Channels)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("notify.enabled", d.Notify.Enabled)
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		parseStringHook(func(s string) (clipboard.Mode, error) { return clipboard.ParseMode(s) }),
		parseStringHook(func(s string) (refine.Preset, error) { return refine.ParsePreset(s) }),
		parseStringHook(func(s string) (refine.Provider, error) { return refine.ParseProvider(s) }),
	)
}

// parseStringHook validates string values decoded into T through parse.
func parseStringHook[T ~string](parse func(string) (T, error)) mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(T(""))
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != target {
			return data, nil
		}
		return parse(reflect.ValueOf(data).String())
	}
}
