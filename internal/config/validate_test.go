package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Default()
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.ChatID = "-1001234"
	return cfg
}

// TestValidate_MissingTokenYieldsActionableOutput verifies a missing token
// names the variable to set.
func TestValidate_MissingTokenYieldsActionableOutput(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = ""

	err := Validate(&cfg)
	if err == nil {
		t.Fatal("expected error when token missing")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("error should wrap ErrInvalid, got: %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "CONFIG_INVALID") {
		t.Errorf("error should contain CONFIG_INVALID, got: %s", msg)
	}
	if !strings.Contains(msg, "Set env: ASKBRIDGE_TELEGRAM_TOKEN") {
		t.Errorf("error should be actionable, got: %s", msg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing chat id", mutate: func(c *Config) { c.Telegram.ChatID = "" }, wantErr: "missing telegram.chat_id"},
		{name: "non numeric chat id", mutate: func(c *Config) { c.Telegram.ChatID = "@mychannel" }, wantErr: "decimal integer"},
		{name: "zero upload limit", mutate: func(c *Config) { c.Files.MaxUploadMB = 0 }, wantErr: "files.max_upload_mb"},
		{name: "negative archive limit", mutate: func(c *Config) { c.Project.MaxArchiveMB = -1 }, wantErr: "project.max_archive_mb"},
		{name: "bad endpoint", mutate: func(c *Config) { c.Telegram.APIEndpoint = "http://localhost" }, wantErr: "api_endpoint"},
		{name: "custom endpoint", mutate: func(c *Config) { c.Telegram.APIEndpoint = "http://localhost:8081/bot%s/%s" }},
		{name: "negative send burst", mutate: func(c *Config) { c.Telegram.SendBurst = -1 }, wantErr: "send_burst"},
		{name: "pacing disabled", mutate: func(c *Config) { c.Telegram.SendIntervalMS = 0 }},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := Validate(&cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidate_CanonicalChatID(t *testing.T) {
	for in, want := range map[string]string{
		"+42":     "42",
		"042":     "42",
		" 42":     "42",
		"-0100":   "-100",
		"-100123": "-100123",
	} {
		cfg := validConfig()
		cfg.Telegram.ChatID = in
		if err := Validate(&cfg); err != nil {
			t.Fatalf("Validate(%q): %v", in, err)
		}
		if cfg.Telegram.ChatID != want {
			t.Errorf("chat id %q normalised to %q, want %q", in, cfg.Telegram.ChatID, want)
		}
	}
}
