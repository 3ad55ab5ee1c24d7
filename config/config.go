// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.localvoice.app/localvoice/hotkey"
	"go.localvoice.app/localvoice/inject"
	"go.localvoice.app/localvoice/transcribe"
	"go.localvoice.app/localvoice/vocabulary"
)

const (
	appName        = "localvoice"
	configFileName = "config.json"
)

// Config represents the application configuration. Durations are stored
// in milliseconds so the file stays hand-editable.
type Config struct {
	Hotkey     string `json:"hotkey"`
	HotkeyMode string `json:"hotkey_mode"`

	ModelSize string `json:"model_size"`
	Language  string `json:"language"`
	Device    string `json:"device"`

	InjectionMethod   string `json:"injection_method"`
	TypingDelayMS     int    `json:"typing_delay_ms"`
	AddTrailingSpace  bool   `json:"add_trailing_space"`
	PreserveClipboard bool   `json:"preserve_clipboard"`
	CopyOnly          bool   `json:"copy_only"`

	MinRecordingMS int `json:"min_recording_ms"`
	MaxRecordingMS int `json:"max_recording_ms"`

	EnableHistory     bool `json:"enable_history"`
	HistoryMaxEntries int  `json:"history_max_entries"`

	VocabularyWords         []string          `json:"vocabulary_words,omitempty"`
	VocabularySubstitutions map[string]string `json:"vocabulary_substitutions,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Hotkey:            "caps_lock",
		HotkeyMode:        "hold",
		ModelSize:         "base",
		Language:          "auto",
		Device:            "auto",
		InjectionMethod:   "clipboard",
		TypingDelayMS:     10,
		AddTrailingSpace:  true,
		PreserveClipboard: true,
		MinRecordingMS:    500,
		MaxRecordingMS:    120000,
		EnableHistory:     true,
		HistoryMaxEntries: 500,
	}
}

// Load loads configuration from the config file.
// Returns default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Missing fields fall back to defaults rather than zero values, so a
	// partial file written by hand stays usable.
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks every field that downstream components would otherwise
// reject at first use.
func (c *Config) Validate() error {
	mode, err := hotkey.ParseMode(c.HotkeyMode)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := hotkey.ParseBinding(c.Hotkey, mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := inject.ParseStrategy(c.InjectionMethod); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch transcribe.ModelSize(c.ModelSize) {
	case transcribe.ModelTiny, transcribe.ModelBase, transcribe.ModelSmall,
		transcribe.ModelMedium, transcribe.ModelLarge:
	default:
		return fmt.Errorf("config: invalid model size: %q", c.ModelSize)
	}
	switch transcribe.Device(c.Device) {
	case transcribe.DeviceAuto, transcribe.DeviceCPU, transcribe.DeviceGPU:
	default:
		return fmt.Errorf("config: invalid device: %q", c.Device)
	}

	if c.MinRecordingMS < 0 || c.MaxRecordingMS <= 0 {
		return fmt.Errorf("config: recording bounds must be positive")
	}
	if c.MinRecordingMS >= c.MaxRecordingMS {
		return fmt.Errorf("config: min_recording_ms %d must be below max_recording_ms %d",
			c.MinRecordingMS, c.MaxRecordingMS)
	}
	if c.TypingDelayMS < 0 {
		return fmt.Errorf("config: typing_delay_ms must not be negative")
	}
	if c.HistoryMaxEntries < 0 {
		return fmt.Errorf("config: history_max_entries must not be negative")
	}
	if len(c.VocabularyWords) > vocabulary.MaxWords {
		return fmt.Errorf("config: vocabulary_words exceeds limit of %d", vocabulary.MaxWords)
	}
	return nil
}

// MinRecording returns the minimum recording duration.
func (c *Config) MinRecording() time.Duration {
	return time.Duration(c.MinRecordingMS) * time.Millisecond
}

// MaxRecording returns the maximum recording duration.
func (c *Config) MaxRecording() time.Duration {
	return time.Duration(c.MaxRecordingMS) * time.Millisecond
}

// TypingDelay returns the per-character delay for keystroke injection.
func (c *Config) TypingDelay() time.Duration {
	return time.Duration(c.TypingDelayMS) * time.Millisecond
}

// Path returns the config file location under the user config dir.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(base, appName, configFileName), nil
}

// DataDir returns the directory for application state such as the
// history store and downloaded models.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, "."+appName), nil
}
