package rendercore

import (
	"log/slog"

	"github.com/gogpu/rendercore/internal/logging"
)

// SetLogger configures the logger for rendercore and all its sub-packages.
// By default, rendercore produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by rendercore:
//   - [slog.LevelDebug]: inserted barriers, pool misses on busy objects
//   - [slog.LevelInfo]: lifecycle events (environment and ring creation)
//   - [slog.LevelWarn]: pools growing past their threshold, slow fence waits
//
// Example:
//
//	// Enable debug-level logging for full diagnostics:
//	rendercore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by rendercore.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}
