package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"askbridge/internal/config"
)

const (
	ExitSuccess       = 0
	ExitGenericError  = 1
	ExitConfigInvalid = 2
	ExitTransportInit = 3
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	ConfigPath  string
	ProjectDir  string
	ChatID      string
	HistoryPath string
	LogLevel    string
	LogFormat   string
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "askbridge",
	Short: "MCP server that lets an agent ask a human over Telegram",
	Long: "askbridge speaks MCP over stdio and relays ask_user questions to one Telegram chat,\n" +
		"returning the reply that quotes or follows each question.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalFlags.ConfigPath, "config", config.DefaultConfigPath, "config file path (.toml, .yaml or .yml)")
	pf.StringVar(&globalFlags.ProjectDir, "dir", ".", "project directory for zip_project and relative send_file paths")
	pf.StringVar(&globalFlags.ChatID, "chat-id", "", "Telegram chat id that receives questions")
	pf.StringVar(&globalFlags.HistoryPath, "history", "", "SQLite history database path (empty disables history)")
	pf.StringVar(&globalFlags.LogLevel, "log-level", config.DefaultLogLevel, "log level: debug|info|warn|error")
	pf.StringVar(&globalFlags.LogFormat, "log-format", config.DefaultLogFormat, "log format: text|json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. Use ExitCode to map the error to a process
// exit status.
func Execute() error {
	return rootCmd.Execute()
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps an Execute error to an exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, config.ErrInvalid) {
		return ExitConfigInvalid
	}
	return ExitGenericError
}

// PrintError writes err to w with the styled error prefix.
func PrintError(w io.Writer, err error) {
	s := newStyles(w)
	fmt.Fprintln(w, s.errPrefix(), err)
}

// loadConfig resolves config with only the flags the user actually set
// applied as overrides.
func loadConfig(cmd *cobra.Command, skipValidate bool) (*config.Config, error) {
	overrides := &config.Overrides{}
	flags := cmd.Flags()
	if flags.Changed("dir") {
		overrides.ProjectDir = &globalFlags.ProjectDir
	}
	if flags.Changed("chat-id") {
		overrides.ChatID = &globalFlags.ChatID
	}
	if flags.Changed("history") {
		overrides.HistoryPath = &globalFlags.HistoryPath
	}
	if flags.Changed("log-level") {
		overrides.LogLevel = &globalFlags.LogLevel
	}
	if flags.Changed("log-format") {
		overrides.LogFormat = &globalFlags.LogFormat
	}

	cfg, err := config.Load(config.Options{
		ConfigPath:   globalFlags.ConfigPath,
		SkipValidate: skipValidate,
		Overrides:    overrides,
	})
	if err != nil {
		return nil, withExit(ExitConfigInvalid, err)
	}
	return cfg, nil
}
