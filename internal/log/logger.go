package log

import (
	"io"
	"net/url"
	"os"
	"time"

	config "github.com/chainwatch/ingestor/configs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const defaultLevel = zerolog.InfoLevel

// InitLogger replaces the zerolog global logger using config.Cfg.Log.
func InitLogger() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.SetGlobalLevel(ParseLevel(config.Cfg.Log.Level))
	log.Logger = NewLogger(os.Stderr, config.Cfg.Log)
}

// ParseLevel falls back to info for empty or unknown levels.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return defaultLevel
	}
	return lvl
}

func NewLogger(out io.Writer, cfg config.LogConfig) zerolog.Logger {
	if cfg.Prettify {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().
		Timestamp().
		Caller().
		Str("service", "ingestor").
		Logger()
}

// RedactURL strips the password from a connection URL so it can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
