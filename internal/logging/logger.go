package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"fieldbook/internal/config"

	"github.com/rs/zerolog"
)

// New builds the process logger from config.
// Empty fields mean JSON, info level, stdout.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	out, closer, err := openOutput(cfg)
	if err != nil {
		return nil, nil, err
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	level := parseLevel(cfg.Level)
	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	logger := ctx.
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &logger, closer, nil
}

func parseLevel(raw string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// openOutput resolves logging.output: stdout (default), stderr, file, or
// both (file plus stdout).
func openOutput(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Output))
	switch mode {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	case "file", "both":
		if cfg.FilePath == "" {
			return nil, nil, errors.New("logging.file_path is required for file output")
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		if mode == "both" {
			return zerolog.MultiLevelWriter(f, os.Stdout), f, nil
		}
		return f, f, nil
	default:
		return nil, nil, fmt.Errorf("unknown logging.output %q", cfg.Output)
	}
}

// Component returns a child logger tagged with the subsystem name.
func Component(base *zerolog.Logger, name string) *zerolog.Logger {
	l := base.With().Str("component", name).Logger()
	return &l
}
