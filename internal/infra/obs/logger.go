package obs

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger: tinted console output at debug level
// for local development, JSON at info level everywhere else. Every record
// carries the app attribute so mixed deployments stay separable.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "debug":
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return slog.New(handler).With(slog.String("app", "campusfind"))
}
