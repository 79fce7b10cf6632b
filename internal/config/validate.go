package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks required fields and constraints and rewrites the chat id in
// canonical decimal form. Errors wrap ErrInvalid and say how to fix the
// problem.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("%w: missing telegram.token\nSet env: %s=...", ErrInvalid, EnvVarForField("telegram.token"))
	}
	chatID := strings.TrimSpace(cfg.Telegram.ChatID)
	if chatID == "" {
		return fmt.Errorf("%w: missing telegram.chat_id\nSet env: %s=...", ErrInvalid, EnvVarForField("telegram.chat_id"))
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: telegram.chat_id=%q must be a decimal integer", ErrInvalid, chatID)
	}
	// Inbound channels are rendered with FormatInt; store the same form so
	// "+42" or "042" still matches replies from chat 42.
	cfg.Telegram.ChatID = strconv.FormatInt(id, 10)
	if ep := cfg.Telegram.APIEndpoint; ep != "" && strings.Count(ep, "%s") != 2 {
		return fmt.Errorf("%w: telegram.api_endpoint=%q must contain two %%s placeholders for token and method", ErrInvalid, ep)
	}
	if err := positive("telegram.poll_timeout_seconds", cfg.Telegram.PollTimeoutSeconds); err != nil {
		return err
	}
	if cfg.Telegram.SendIntervalMS < 0 || cfg.Telegram.SendBurst < 0 {
		return fmt.Errorf("%w: telegram.send_interval_ms and telegram.send_burst must not be negative", ErrInvalid)
	}
	if err := positive("project.max_archive_mb", cfg.Project.MaxArchiveMB); err != nil {
		return err
	}
	if err := positive("files.max_upload_mb", cfg.Files.MaxUploadMB); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Project.Dir) == "" {
		return fmt.Errorf("%w: project.dir must not be empty", ErrInvalid)
	}
	return validateEnums(cfg)
}

func positive(key string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s=%d must be positive", ErrInvalid, key, v)
	}
	return nil
}

func validateEnums(cfg *Config) error {
	if !stringIn(cfg.Log.Level, LogLevels) {
		return fmt.Errorf("%w: log.level=%q; allowed: %s", ErrInvalid, cfg.Log.Level, strings.Join(LogLevels, ", "))
	}
	if !stringIn(cfg.Log.Format, LogFormats) {
		return fmt.Errorf("%w: log.format=%q; allowed: %s", ErrInvalid, cfg.Log.Format, strings.Join(LogFormats, ", "))
	}
	return nil
}

func stringIn(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
