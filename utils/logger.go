package utils

import (
	"io"
	"log/slog"
	"path/filepath"
)

// NewLogger creates the text logger used for progress and warnings.
// Source locations are trimmed to the file base name.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.SourceKey {
				if source, ok := attr.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return attr
		},
	}))
}

// DiscardLogger returns a logger that drops every record
func DiscardLogger() *slog.Logger {
	return NewLogger(io.Discard, slog.LevelError+1)
}
