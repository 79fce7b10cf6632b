// Package config resolves askbridge settings from defaults, a config file,
// dotenv files, the environment and CLI flags.
package config

import (
	"errors"
	"time"
)

const (
	DefaultConfigPath         = "askbridge.toml"
	DefaultPollTimeoutSeconds = 30
	DefaultSendIntervalMS     = 1000
	DefaultSendBurst          = 3
	DefaultMaxArchiveMB       = 50
	DefaultMaxUploadMB        = 50
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

var (
	LogLevels  = []string{"debug", "info", "warn", "error"}
	LogFormats = []string{"text", "json"}

	DefaultExcludes = []string{".git/", "node_modules/", "**/*.pem", ".env"}
)

// ErrInvalid marks configuration errors that should stop the process before
// it starts serving.
var ErrInvalid = errors.New("CONFIG_INVALID")

type Config struct {
	Telegram TelegramConfig `toml:"telegram" yaml:"telegram"`
	Project  ProjectConfig  `toml:"project" yaml:"project"`
	Files    FilesConfig    `toml:"files" yaml:"files"`
	History  HistoryConfig  `toml:"history" yaml:"history"`
	Log      LogConfig      `toml:"log" yaml:"log"`

	sources map[string]FieldSource
}

type TelegramConfig struct {
	Token string `toml:"token" yaml:"token"`
	// ChatID is the only chat that receives questions and whose replies are
	// accepted.
	ChatID             string `toml:"chat_id" yaml:"chat_id"`
	APIEndpoint        string `toml:"api_endpoint" yaml:"api_endpoint"`
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds" yaml:"poll_timeout_seconds"`

	// Outbound pacing: at most SendBurst messages back to back, then one per
	// SendIntervalMS. Zero disables pacing.
	SendIntervalMS int `toml:"send_interval_ms" yaml:"send_interval_ms"`
	SendBurst      int `toml:"send_burst" yaml:"send_burst"`
}

type ProjectConfig struct {
	Dir          string   `toml:"dir" yaml:"dir"`
	Excludes     []string `toml:"excludes" yaml:"excludes"`
	MaxArchiveMB int      `toml:"max_archive_mb" yaml:"max_archive_mb"`
}

type FilesConfig struct {
	MaxUploadMB int `toml:"max_upload_mb" yaml:"max_upload_mb"`
}

type HistoryConfig struct {
	// Path of the SQLite history database. Empty disables history.
	Path string `toml:"path" yaml:"path"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

func Default() Config {
	return Config{
		Telegram: TelegramConfig{
			PollTimeoutSeconds: DefaultPollTimeoutSeconds,
			SendIntervalMS:     DefaultSendIntervalMS,
			SendBurst:          DefaultSendBurst,
		},
		Project: ProjectConfig{
			Dir:          ".",
			Excludes:     append([]string(nil), DefaultExcludes...),
			MaxArchiveMB: DefaultMaxArchiveMB,
		},
		Files: FilesConfig{
			MaxUploadMB: DefaultMaxUploadMB,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func (c Config) PollTimeout() time.Duration {
	return time.Duration(c.Telegram.PollTimeoutSeconds) * time.Second
}

func (c Config) SendInterval() time.Duration {
	return time.Duration(c.Telegram.SendIntervalMS) * time.Millisecond
}

func (c Config) MaxArchiveBytes() int64 {
	return int64(c.Project.MaxArchiveMB) << 20
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.Files.MaxUploadMB) << 20
}
