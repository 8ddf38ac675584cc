package nmea

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gnsstec/internal/logging"
)

// Format selects how the monitor reports watched sentences.
type Format int

const (
	FormatRaw Format = iota
	FormatPlain
	FormatBoth
)

// ParseFormat maps a configuration string onto a Format.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "raw", "":
		return FormatRaw, nil
	case "plain":
		return FormatPlain, nil
	case "both":
		return FormatBoth, nil
	default:
		return FormatRaw, fmt.Errorf("unknown NMEA report format %q", value)
	}
}

// Monitor tracks the latest watched sentence per type and reports changes
// on a fixed interval. A zero interval disables it entirely.
type Monitor struct {
	scanner  Scanner
	latest   map[string]string
	updated  map[string]bool
	interval time.Duration
	format   Format
	logger   *slog.Logger
	lastEmit time.Time
	now      func() time.Time
}

// NewMonitor builds a monitor reporting through logger. interval <= 0
// disables both scanning and reporting.
func NewMonitor(interval time.Duration, format Format, logger *slog.Logger) *Monitor {
	m := &Monitor{
		latest:   make(map[string]string),
		updated:  make(map[string]bool),
		interval: interval,
		format:   format,
		logger:   logging.NewComponentLogger(logger, "nmea"),
		now:      time.Now,
	}
	m.lastEmit = m.now()
	return m
}

// Enabled reports whether the monitor does any work.
func (m *Monitor) Enabled() bool {
	return m != nil && m.interval > 0
}

// Ingest feeds raw serial bytes. Valid watched sentences replace the
// previous snapshot for their type.
func (m *Monitor) Ingest(data []byte) {
	if !m.Enabled() {
		return
	}
	for _, sentence := range m.scanner.Feed(data) {
		id, ok := MessageID(sentence)
		if !ok || !isWatched(id) {
			continue
		}
		m.latest[id] = sentence
		m.updated[id] = true
	}
}

// MaybeReport emits one report line per watched type updated since the last
// report, once the interval has elapsed. Call it on every ingestion tick.
func (m *Monitor) MaybeReport() {
	if !m.Enabled() || m.now().Sub(m.lastEmit) < m.interval {
		return
	}
	for _, id := range WatchedTypes {
		sentence, ok := m.latest[id]
		if !ok || !m.updated[id] {
			continue
		}
		m.report(id, sentence)
		m.updated[id] = false
	}
	m.lastEmit = m.now()
}

func (m *Monitor) report(id, sentence string) {
	if m.format == FormatRaw || m.format == FormatBoth {
		m.logger.Info("status sentence", logging.String("type", id), logging.String("raw", sentence))
	}
	if m.format == FormatPlain || m.format == FormatBoth {
		plain, ok := Summarize(id, sentence)
		if !ok {
			plain = "unable to parse sentence"
		}
		m.logger.Info("status sentence", logging.String("type", id), logging.String("summary", plain))
	}
}

func isWatched(id string) bool {
	for _, watched := range WatchedTypes {
		if id == watched {
			return true
		}
	}
	return false
}
