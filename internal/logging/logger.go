package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds a logger. An empty format picks text when the output is a
// terminal and JSON otherwise.
func New(opts Options) (*charmlog.Logger, error) {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = detectFormat(output)
	}

	logger := charmlog.NewWithOptions(output, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})
	switch format {
	case FormatText:
		logger.SetFormatter(charmlog.TextFormatter)
	case FormatJSON:
		logger.SetFormatter(charmlog.JSONFormatter)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	return logger, nil
}

// Discard returns a logger that drops everything, for tests.
func Discard() *charmlog.Logger {
	return charmlog.NewWithOptions(io.Discard, charmlog.Options{Level: charmlog.FatalLevel})
}

func parseLevel(level string) (charmlog.Level, error) {
	trimmed := strings.ToLower(strings.TrimSpace(level))
	switch trimmed {
	case "", "info":
		return charmlog.InfoLevel, nil
	case "warning":
		return charmlog.WarnLevel, nil
	}
	parsed, err := charmlog.ParseLevel(trimmed)
	if err != nil {
		return charmlog.InfoLevel, fmt.Errorf("log level: %w", err)
	}
	return parsed, nil
}

func detectFormat(output io.Writer) string {
	file, ok := output.(*os.File)
	if !ok {
		return FormatJSON
	}
	if isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd()) {
		return FormatText
	}
	return FormatJSON
}
