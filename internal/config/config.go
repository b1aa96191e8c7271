// Package config loads the smcontrol TOML configuration.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/n4ldr/smcontrol/internal/protocol"
)

// Config is the full smcontrol configuration.
type Config struct {
	Radio   RadioConfig   `toml:"radio"`
	Login   LoginConfig   `toml:"login"`
	Session SessionConfig `toml:"session"`
	Capture CaptureConfig `toml:"capture"`
	Log     LogConfig     `toml:"log"`
}

// RadioConfig locates the radio's three UDP ports.
type RadioConfig struct {
	Address     string `toml:"address"`
	ControlPort int    `toml:"control_port"`
	SerialPort  int    `toml:"serial_port"`
	AudioPort   int    `toml:"audio_port"`
}

// LoginConfig carries the credentials sent in the login frame.
type LoginConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// SessionConfig bounds the handshake and keep-alive timing.
type SessionConfig struct {
	CandidateTimeoutMS int `toml:"candidate_timeout_ms"`
	PhaseRetries       int `toml:"phase_retries"`
	GlobalBudgetMS     int `toml:"global_budget_ms"`
	IdleIntervalMS     int `toml:"idle_interval_ms"`
	DeadChannelMS      int `toml:"dead_channel_ms"`
	CommandTimeoutMS   int `toml:"command_timeout_ms"`
}

// CaptureConfig controls the accepted-pair store.
type CaptureConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Radio: RadioConfig{
			Address:     "192.168.1.100",
			ControlPort: protocol.DefaultControlPort,
			SerialPort:  protocol.DefaultSerialPort,
			AudioPort:   protocol.DefaultAudioPort,
		},
		Session: SessionConfig{
			CandidateTimeoutMS: 3000,
			PhaseRetries:       3,
			GlobalBudgetMS:     45000,
			IdleIntervalMS:     3000,
			DeadChannelMS:      15000,
			CommandTimeoutMS:   2000,
		},
		Capture: CaptureConfig{
			Enabled: true,
			Path:    "data/captures.db",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. Missing keys keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the session layer cannot run with.
func (c *Config) Validate() error {
	if c.Radio.Address == "" {
		return fmt.Errorf("radio address is required")
	}
	for _, p := range []struct {
		name string
		port int
	}{
		{"control_port", c.Radio.ControlPort},
		{"serial_port", c.Radio.SerialPort},
		{"audio_port", c.Radio.AudioPort},
	} {
		if p.port <= 0 || p.port > 65535 {
			return fmt.Errorf("%s %d out of range", p.name, p.port)
		}
	}
	if c.Login.Username == "" || c.Login.Password == "" {
		return fmt.Errorf("login username and password are required")
	}
	if c.Session.CandidateTimeoutMS <= 0 {
		return fmt.Errorf("candidate_timeout_ms must be positive")
	}
	if c.Session.DeadChannelMS <= c.Session.IdleIntervalMS {
		return fmt.Errorf("dead_channel_ms must exceed idle_interval_ms")
	}
	if c.Capture.Enabled && c.Capture.Path == "" {
		return fmt.Errorf("capture path is required when capture is enabled")
	}
	return nil
}
