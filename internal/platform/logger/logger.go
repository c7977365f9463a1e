package logger

import (
	"log/slog"
	"os"
)

// NewStructured returns the slog logger injected into services.
func NewStructured() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
