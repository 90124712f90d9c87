package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// AudioConfig holds capture settings. Only 16000 and 44100 Hz survive the
// pitch model's sample-rate check.
type AudioConfig struct {
	SampleRate      int     `json:"sampleRate,omitempty"`
	BlockSize       int     `json:"blockSize,omitempty"`
	Threshold       float64 `json:"threshold,omitempty"`
	SilenceDuration float64 `json:"silenceDuration,omitempty"`
	MaxRecord       float64 `json:"maxRecord,omitempty"`
}

// MIDIConfig defines the output destination.
type MIDIConfig struct {
	PortName string `json:"portName,omitempty"`
	Create   bool   `json:"create,omitempty"` // open a virtual port instead
}

// LLMConfig points at the text-generation endpoint. The API key comes from
// the environment, never from the config file.
type LLMConfig struct {
	BaseURL string `json:"baseURL,omitempty"`
	Model   string `json:"model,omitempty"`
}

// PitchConfig points at the pitch-model sidecar.
type PitchConfig struct {
	URL string `json:"url,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	BPM   float64     `json:"bpm,omitempty"`
	Style string      `json:"style,omitempty"`
	Audio AudioConfig `json:"audio,omitempty"`
	MIDI  MIDIConfig  `json:"midi,omitempty"`
	LLM   LLMConfig   `json:"llm,omitempty"`
	Pitch PitchConfig `json:"pitch,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		BPM:   95,
		Style: "mellow",
		Audio: AudioConfig{
			SampleRate:      44100,
			BlockSize:       4096,
			Threshold:       0.01,
			SilenceDuration: 0.5,
			MaxRecord:       30,
		},
		MIDI: MIDIConfig{
			Create: true,
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		Pitch: PitchConfig{
			URL: "http://localhost:8942/estimate",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "llmjam"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
