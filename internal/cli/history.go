package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"askbridge/internal/history"
	"askbridge/internal/model"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent questions and their answers",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of questions to list")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return withExit(ExitConfigInvalid, errors.New("history is disabled; set history.path or --history"))
	}

	store := history.NewSQLiteStore(cfg.History.Path)
	defer func() { _ = store.Close() }()
	records, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	out := cmd.OutOrStdout()
	s := newStyles(out)
	if len(records) == 0 {
		fmt.Fprintln(out, s.dim("no questions recorded"))
		return nil
	}
	for _, rec := range records {
		fmt.Fprintln(out, formatRecord(s, rec, time.Now()))
	}
	return nil
}

func formatRecord(s styles, rec model.QuestionRecord, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", s.sectionHeader("#"+rec.ID), statusLabel(s, rec.Status), s.dim(humanize.RelTime(rec.AskedAt, now, "ago", "from now")))
	fmt.Fprintf(&b, "  Q: %s", oneLine(rec.Question))
	if rec.Status == model.StatusAnswered {
		fmt.Fprintf(&b, "\n  A: %s", oneLine(rec.Answer))
	}
	return b.String()
}

func statusLabel(s styles, status model.QuestionStatus) string {
	label := "[" + string(status) + "]"
	switch status {
	case model.StatusAnswered:
		return s.success(label)
	case model.StatusPending:
		return label
	default:
		return s.warn(label)
	}
}

func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
