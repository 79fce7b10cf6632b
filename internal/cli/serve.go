package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"askbridge/internal/config"
	"askbridge/internal/correlation"
	"askbridge/internal/history"
	"askbridge/internal/logging"
	"askbridge/internal/mcp"
	"askbridge/internal/model"
	"askbridge/internal/question"
	"askbridge/internal/transport"
	"askbridge/internal/transport/telegram"
)

// shutdownGrace bounds how long serve waits for in-flight responses after
// pending questions have been interrupted.
const shutdownGrace = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP over stdio (default command)",
	RunE:  runServe,
}

// newTransport connects the chat transport. Tests replace it.
var newTransport = func(cfg *config.Config, logger *slog.Logger) (model.Transport, error) {
	tg, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		Endpoint:    cfg.Telegram.APIEndpoint,
		PollTimeout: cfg.PollTimeout(),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return transport.Throttle(tg, cfg.SendInterval(), cfg.Telegram.SendBurst), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return withExit(ExitConfigInvalid, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
}

// serve wires the transport, registry, matcher, question service and MCP
// server, then processes stdio until EOF or ctx ends.
func serve(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *slog.Logger) error {
	if isTerminal(in) {
		logger.Warn("stdin is a terminal; askbridge expects an MCP client on stdio")
	}

	projectDir, err := filepath.Abs(cfg.Project.Dir)
	if err != nil {
		return withExit(ExitConfigInvalid, fmt.Errorf("project directory: %w", err))
	}

	chat, err := newTransport(cfg, logger)
	if err != nil {
		return withExit(ExitTransportInit, err)
	}
	defer func() {
		if err := chat.Close(); err != nil {
			logger.Warn("close transport", "error", err)
		}
	}()

	var store model.HistoryStore
	if cfg.History.Path != "" {
		sqlite := history.NewSQLiteStore(cfg.History.Path)
		if err := sqlite.Init(ctx); err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer func() { _ = sqlite.Close() }()
		store = sqlite
	}

	ids, err := correlation.NewSnowflakeSource()
	if err != nil {
		return fmt.Errorf("identity source: %w", err)
	}
	registry := correlation.NewRegistry()
	svc := question.NewService(question.Options{
		Recipient: cfg.Telegram.ChatID,
		Sender:    chat,
		Registry:  registry,
		IDs:       ids,
		History:   store,
		Logger:    logger,
	})

	matchCtx, stopMatching := context.WithCancel(context.Background())
	defer stopMatching()
	go correlation.NewMatcher(cfg.Telegram.ChatID, registry, logger).Run(matchCtx, chat.Inbound())

	server := mcp.NewServer(mcp.ServerOptions{
		Service:         svc,
		Version:         version,
		ProjectDir:      projectDir,
		Excludes:        cfg.Project.Excludes,
		MaxArchiveBytes: cfg.MaxArchiveBytes(),
		MaxUploadBytes:  cfg.MaxUploadBytes(),
		Logger:          logger,
	})

	logger.Info("serving MCP on stdio", "chat_id", cfg.Telegram.ChatID, "project_dir", projectDir)
	serveErr := server.Serve(ctx, in, out)

	svc.Interrupt()
	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Wait(waitCtx); err != nil {
		logger.Warn("in-flight requests did not finish before shutdown", "error", err)
	}
	logger.Info("shutdown complete")

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	return nil
}
