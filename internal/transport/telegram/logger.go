package telegram

import (
	"fmt"
	"log/slog"
	"strings"
)

// slogBotLogger routes the Bot API library's logging into slog.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)), slog.String("source", "tgbotapi"))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("source", "tgbotapi"))
}
