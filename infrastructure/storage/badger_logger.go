package storage

import (
	"fmt"
	"log/slog"
	"strings"
)

// badgerLogger routes badger's printf-style logs to slog, tagged with the
// component so they stay distinguishable from the application's own lines.
type badgerLogger struct {
	log *slog.Logger
}

func newBadgerLogger(log *slog.Logger) badgerLogger {
	return badgerLogger{log: log.With("component", "badger")}
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(clean(format, args))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(clean(format, args))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Info(clean(format, args))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(clean(format, args))
}

// clean drops the trailing newline badger appends to every line.
func clean(format string, args []any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
