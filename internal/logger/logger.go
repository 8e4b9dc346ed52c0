// Package logger wraps zerolog so every package can hold its own component
// logger as a package variable, created before Init runs.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// swapWriter lets Init redirect loggers that were built at package init
type swapWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Write(p)
}

func (s *swapWriter) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

var (
	out  = &swapWriter{w: os.Stderr}
	base = zerolog.New(out).With().Timestamp().Logger()
)

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Init configures the process-wide output and level. Unknown levels fall back to info.
func Init(level string, pretty bool) {
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	SetOutput(w, level)
}

// SetOutput redirects every logger, including those created earlier
func SetOutput(w io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	out.set(w)
}

// WithComponent returns a child logger tagged with the component name
func WithComponent(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
