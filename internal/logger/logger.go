package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35

	colorBold = 1
)

func colorize(s interface{}, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// Init builds the logger for env and installs it as the global zerolog logger.
func Init(env string) zerolog.Logger {
	l := New(env)
	log.Logger = l
	return l
}

// New creates a console logger for development environments and a JSON logger otherwise.
func New(env string) zerolog.Logger {
	switch strings.ToLower(env) {
	case "", "dev", "development":
		return NewDevelopment()
	}
	return NewProduction()
}

// NewDevelopment creates a development logger with console output and colors
func NewDevelopment() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:         os.Stderr,
		TimeFormat:  "2006-01-02 15:04:05",
		FormatLevel: formatLevel,
	}
	return zerolog.New(output).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}

// NewProduction creates a production logger with JSON output and UNIX timestamps
func NewProduction() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

func formatLevel(i interface{}) string {
	ll, ok := i.(string)
	if !ok || len(ll) < 3 {
		return strings.ToUpper(fmt.Sprintf("%-3s", fmt.Sprint(i)))[0:3]
	}
	switch ll {
	case "trace":
		return colorize("TRC", colorMagenta)
	case "debug":
		return colorize("DBG", colorYellow)
	case "info":
		return colorize("INF", colorGreen)
	case "warn", "error", "fatal", "panic":
		return colorize(strings.ToUpper(ll)[0:3], colorRed)
	}
	return colorize(strings.ToUpper(ll)[0:3], colorBold)
}
