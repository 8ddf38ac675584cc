package bucket

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Hour identifies one UTC calendar hour. It is the unit of capture file
// grouping, conversion, and archival.
type Hour struct {
	start time.Time
}

// Of returns the hour bucket containing t, evaluated in UTC.
func Of(t time.Time) Hour {
	return Hour{start: t.UTC().Truncate(time.Hour)}
}

// FromKey parses a bucket key in YYYYMMDD_HH form.
func FromKey(key string) (Hour, error) {
	start, err := time.ParseInLocation("20060102_15", key, time.UTC)
	if err != nil {
		return Hour{}, fmt.Errorf("parse hour key %q: %w", key, err)
	}
	return Hour{start: start}, nil
}

// Key returns the canonical YYYYMMDD_HH identifier. Keys sort
// chronologically as strings.
func (h Hour) Key() string {
	return h.start.Format("20060102_15")
}

// Start returns the first instant of the hour in UTC.
func (h Hour) Start() time.Time {
	return h.start
}

// Prev returns the preceding hour bucket.
func (h Hour) Prev() Hour {
	return Hour{start: h.start.Add(-time.Hour)}
}

// Before reports whether h is strictly earlier than other.
func (h Hour) Before(other Hour) bool {
	return h.start.Before(other.start)
}

// Equal reports whether both values identify the same hour.
func (h Hour) Equal(other Hour) bool {
	return h.start.Equal(other.start)
}

// IsZero reports whether h is the zero bucket.
func (h Hour) IsZero() bool {
	return h.start.IsZero()
}

// ArchiveDir returns the date-keyed archive path for the hour under root,
// "<root>/<year>/<day-of-year>" with a three-digit ordinal day.
func (h Hour) ArchiveDir(root string) string {
	return filepath.Join(root, h.start.Format("2006"), fmt.Sprintf("%03d", h.start.YearDay()))
}

// String implements fmt.Stringer with a human-readable label.
func (h Hour) String() string {
	return h.start.Format("2006-01-02 15:00")
}

// CaptureExt is the raw capture file extension including the dot.
const CaptureExt = ".ubx"

// CaptureFileName builds the raw capture file name for a file opened at t.
// The name embeds the full open timestamp; the leading YYYYMMDD_HH prefix
// ties it to its hour bucket.
func CaptureFileName(t time.Time) string {
	return t.UTC().Format("20060102_150405") + CaptureExt
}

// FromCaptureName recovers the hour bucket from a capture file name.
// The second return value is false for names that are not capture files.
func FromCaptureName(name string) (Hour, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, CaptureExt) {
		return Hour{}, false
	}
	stem := strings.TrimSuffix(base, CaptureExt)
	if len(stem) != len("20060102_150405") {
		return Hour{}, false
	}
	start, err := time.ParseInLocation("20060102_150405", stem, time.UTC)
	if err != nil {
		return Hour{}, false
	}
	return Of(start), true
}

// MatchesCapture reports whether a capture file name belongs to the hour.
func (h Hour) MatchesCapture(name string) bool {
	parsed, ok := FromCaptureName(name)
	return ok && parsed.Equal(h)
}
