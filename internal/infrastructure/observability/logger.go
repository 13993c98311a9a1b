package observability

import (
    "io"
    "os"
    "strings"

    "github.com/rs/zerolog"
)

// NewLogger returns a JSON logger on stdout tagged with the binary version.
func NewLogger(level string) *zerolog.Logger {
    return NewLoggerTo(os.Stdout, level)
}

func NewLoggerTo(w io.Writer, level string) *zerolog.Logger {
    lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
    if err != nil || lvl == zerolog.NoLevel {
        lvl = zerolog.InfoLevel
    }
    logger := zerolog.New(w).Level(lvl).With().
        Timestamp().
        Str("service", "wormaceptor").
        Str("version", Version).
        Logger()
    return &logger
}
