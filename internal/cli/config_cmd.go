package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration with the source of each value",
	RunE:  runConfigPrint,
}

func runConfigPrint(cmd *cobra.Command, _ []string) error {
	// Print even when required fields are missing; that is when this is useful.
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s := newStyles(out)
	fields := cfg.Snapshot()

	width := 0
	for _, fi := range fields {
		if len(fi.Key) > width {
			width = len(fi.Key)
		}
	}

	fmt.Fprintln(out, s.sectionHeader("askbridge configuration"))
	fmt.Fprintln(out, s.separator(width+32))
	for _, fi := range fields {
		value := fi.Value
		if value == "" {
			value = "(unset)"
		}
		fmt.Fprintf(out, "%s %s\n", s.kv(fi.Key, value, width), s.dim("["+string(fi.Source)+"]"))
	}
	return nil
}
