package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Pretty output is meant for a terminal;
// production deployments get one JSON object per line.
func New(level string, pretty bool) zerolog.Logger {
	var out io.Writer = os.Stdout
	if pretty {
		out = consoleWriter(os.Stdout)
	}
	return NewWithWriter(out, level)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldInteger = true

	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05 MST",
	}

	output.FormatLevel = func(i interface{}) string {
		var color string
		var level string

		if l, ok := i.(string); ok {
			level = strings.ToUpper(l)
			switch level {
			case "TRACE":
				color = "\x1b[36m"
			case "DEBUG":
				color = "\x1b[32m"
			case "INFO":
				color = "\x1b[34m"
			case "WARN":
				color = "\x1b[33m"
			case "ERROR", "FATAL":
				color = "\x1b[31m"
			case "PANIC":
				color = "\x1b[35m"
			default:
				color = "\x1b[0m"
			}
		}

		return fmt.Sprintf("%s| %-6s|\x1b[0m", color, level)
	}

	output.FormatFieldName = func(i interface{}) string {
		return fmt.Sprintf("\x1b[36m%s:\x1b[0m", i)
	}

	return output
}
