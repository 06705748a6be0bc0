package cli

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// newLogger returns a console logger on w. Unknown levels fall back to warn.
func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	_, isFile := w.(*os.File)
	cw := zerolog.ConsoleWriter{Out: w, NoColor: !isFile, TimeFormat: "15:04:05"}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}
