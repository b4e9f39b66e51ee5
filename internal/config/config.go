// Package config manages persistent user preferences for the wtalk
// client. Settings are stored as JSON at os.UserConfigDir()/wtalk/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all persistent user preferences.
type Config struct {
	Username       string  `json:"username"`
	InputDeviceID  int     `json:"input_device_id"`
	OutputDeviceID int     `json:"output_device_id"`
	Volume         float64 `json:"volume"`
	NoiseGateLevel int     `json:"noise_gate_level"`
	AGCEnabled     bool    `json:"agc_enabled"`
	ServerAddr     string  `json:"server_addr"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Volume:         1.0,
		NoiseGateLevel: 0,
		InputDeviceID:  -1,
		OutputDeviceID: -1,
	}
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "wtalk", "config.json"), nil
}

// Load reads the config file and returns it. If the file is missing or
// unreadable, the default config is returned, never an error.
func Load() Config {
	path, err := Path()
	if err != nil {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Save writes cfg to disk, creating the directory if needed.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
