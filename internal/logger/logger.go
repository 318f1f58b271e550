package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide structured logger. The execution core
// returns data rather than printing; logging here is operational
// context only.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
	With().Timestamp().Logger().Level(zerolog.InfoLevel)

// SetLevel adjusts verbosity; unknown names keep the current level.
func SetLevel(level string) {
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		Logger = Logger.Level(lvl)
	}
}
