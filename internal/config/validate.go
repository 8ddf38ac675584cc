package config

import (
	"errors"
	"fmt"
	"strings"
)

var validReportFormats = map[string]struct{}{
	"raw":   {},
	"plain": {},
	"both":  {},
}

// Validate checks the configuration for values the daemon cannot run with.
// All problems are reported at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Serial.Port == "" {
		problems = append(problems, "serial.port is required")
	}
	if c.Serial.BaudRate <= 0 {
		problems = append(problems, "serial.baud_rate must be positive")
	}
	if c.Serial.ReadTimeoutMS <= 0 {
		problems = append(problems, "serial.read_timeout_ms must be positive")
	}
	if c.Serial.ReadBufferBytes < 1024 {
		problems = append(problems, "serial.read_buffer_bytes must be at least 1024")
	}
	if c.Serial.CommandGapMS < 0 {
		problems = append(problems, "serial.command_gap_ms must not be negative")
	}

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir is required")
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		problems = append(problems, "paths.archive_dir is required")
	}
	if c.Paths.DataDir != "" && c.Paths.DataDir == c.Paths.ArchiveDir {
		problems = append(problems, "paths.data_dir and paths.archive_dir must differ")
	}

	if strings.TrimSpace(c.Station.Name) == "" {
		problems = append(problems, "station.name is required")
	}
	if strings.TrimSpace(c.Converter.PrimaryPath) == "" {
		problems = append(problems, "converter.primary_path is required")
	}

	if c.Capture.FlushIntervalSecs <= 0 {
		problems = append(problems, "capture.flush_interval_secs must be positive")
	}
	if c.Capture.StatsIntervalSecs < 0 {
		problems = append(problems, "capture.stats_interval_secs must not be negative")
	}

	if c.NMEA.ReportIntervalSecs < 0 {
		problems = append(problems, "nmea.report_interval_secs must not be negative")
	}
	if _, ok := validReportFormats[c.NMEA.ReportFormat]; !ok {
		problems = append(problems, fmt.Sprintf("nmea.report_format %q must be raw, plain, or both", c.NMEA.ReportFormat))
	}

	if c.Conversion.ShiftHours < 0 {
		problems = append(problems, "conversion.shift_hours must not be negative")
	}
	if c.Conversion.MaxDaysBack <= 0 {
		problems = append(problems, "conversion.max_days_back must be positive")
	}
	if c.Conversion.PollIntervalSecs <= 0 {
		problems = append(problems, "conversion.poll_interval_secs must be positive")
	}
	if c.Conversion.CompressRetained && !c.Conversion.KeepRaw {
		problems = append(problems, "conversion.compress_retained requires conversion.keep_raw")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

// IsInvalid reports whether err stems from configuration validation.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}
