package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

// NewCapture returns a console-format logger backed by an in-memory buffer
// and a function returning the lines written so far. Intended for tests that
// assert on log output.
func NewCapture() (*slog.Logger, func() []string) {
	var mu sync.Mutex
	buf := &bytes.Buffer{}
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)

	logger := slog.New(newConsoleHandler(lockedWriter{mu: &mu, buf: buf}, lvl))
	lines := func() []string {
		mu.Lock()
		defer mu.Unlock()
		text := strings.TrimSpace(buf.String())
		if text == "" {
			return nil
		}
		return strings.Split(text, "\n")
	}
	return logger, lines
}

type lockedWriter struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}
