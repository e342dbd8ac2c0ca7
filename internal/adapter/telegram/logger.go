package telegram

import (
	"fmt"
	"log/slog"
	"strings"
)

// apiLogger sends go-telegram-bot-api output (polling retries, transient
// 502s) to slog.
type apiLogger struct {
	log *slog.Logger
}

func (l apiLogger) Println(v ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l apiLogger) Printf(format string, v ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
