package logger

import (
	"io"
	"os"

	"golang.org/x/exp/slog"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New логгер для окружения: local - цветной вывод, dev - JSON с debug, prod - JSON с info
func New(env string) *slog.Logger {
	switch env {
	case EnvLocal:
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return setupPrettySlog()
		}
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case EnvDev:
		return newJSON(os.Stdout, slog.LevelDebug)
	default:
		return newJSON(os.Stdout, slog.LevelInfo)
	}
}

// NewFile логгер демона синхронизации: JSON в файл с ротацией
func NewFile(env, path string) *slog.Logger {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // дней
		Compress:   true,
	}

	level := slog.LevelInfo
	if env != EnvProd {
		level = slog.LevelDebug
	}

	return newJSON(w, level)
}

func newJSON(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func setupPrettySlog() *slog.Logger {
	opts := PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}

	return slog.New(opts.NewPrettyHandler(os.Stdout))
}
