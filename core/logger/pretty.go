package logger

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// newPrettyHandler builds a colored console handler. Output still goes
// through the async writer so Shutdown flushes it.
func newPrettyHandler(w *asyncWriter, level slog.Leveler) slog.Handler {
	return tint.NewHandler(ioWriter{w}, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "err" && a.Value.Kind() == slog.KindString && a.Value.String() != "" {
				return tint.Attr(9, a)
			}
			return a
		},
	})
}

// ioWriter adapts asyncWriter to io.Writer. tint does not expose the record
// level to the writer, so pretty lines are tagged INFO and never reach a
// WARN-only output.
type ioWriter struct{ w *asyncWriter }

var _ io.Writer = ioWriter{}

func (a ioWriter) Write(p []byte) (int, error) {
	if err := a.w.Write(slog.LevelInfo, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
