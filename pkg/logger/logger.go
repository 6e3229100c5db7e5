// Package logger builds the zerolog loggers shared by every binary.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configure the process logger.
type Options struct {
	Level   string    // debug, info, warn or error; anything else means info
	Pretty  bool      // console output for local runs
	Service string    // stamped on every line when set
	Out     io.Writer // stdout when nil
}

func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(parseLevel(opts.Level)).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if !opts.Pretty {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Component tags log with the subsystem that owns it.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// MaskIdentifier hides a customer identifier for logging. The first rune and
// an e-mail domain survive: "alice@example.com" becomes "a****@example.com".
func MaskIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	local, domain, isEmail := strings.Cut(identifier, "@")
	runes := []rune(local)
	masked := string(runes[0]) + strings.Repeat("*", len(runes)-1)
	if len(runes) == 1 {
		masked += "*"
	}
	if isEmail {
		return masked + "@" + domain
	}
	return masked
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}
