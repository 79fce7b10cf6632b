package telegram

import (
	"fmt"
	"log/slog"
	"strings"
)

// botLogger routes the Bot API library's log output into slog. Polling
// conflicts happen whenever another process holds the same token and are
// logged at debug.
type botLogger struct {
	log *slog.Logger
}

func (b botLogger) Println(v ...interface{}) {
	b.emit(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (b botLogger) Printf(format string, v ...interface{}) {
	b.emit(strings.TrimSuffix(fmt.Sprintf(format, v...), "\n"))
}

func (b botLogger) emit(line string) {
	if isConflict(line) {
		b.log.Debug(line)
		return
	}
	b.log.Warn(line)
}

func isConflict(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "conflict") || strings.Contains(lower, "409")
}
