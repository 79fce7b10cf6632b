package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"askbridge/internal/logging"
	"askbridge/internal/model"
)

var notifyCmd = &cobra.Command{
	Use:   "notify <text>",
	Short: "Send one plain message to the configured chat",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNotify,
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return withExit(ExitConfigInvalid, err)
	}

	transport, err := newTransport(cfg, logger)
	if err != nil {
		return withExit(ExitTransportInit, err)
	}
	defer func() { _ = transport.Close() }()

	text := strings.Join(args, " ")
	if err := transport.SendText(cmd.Context(), cfg.Telegram.ChatID, text, model.SendOptions{}); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, newStyles(out).success("sent"))
	return nil
}
