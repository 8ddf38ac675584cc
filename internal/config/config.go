package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrInvalid wraps all validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Serial contains receiver link settings.
type Serial struct {
	Port            string `toml:"port"`
	BaudRate        int    `toml:"baud_rate"`
	ReadTimeoutMS   int    `toml:"read_timeout_ms"`
	ReadBufferBytes int    `toml:"read_buffer_bytes"`
	CommandGapMS    int    `toml:"command_gap_ms"`
	CommandFile     string `toml:"command_file"`
}

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	ArchiveDir string `toml:"archive_dir"`
	LogDir     string `toml:"log_dir"`
}

// Station describes the receiver site recorded in RINEX headers.
type Station struct {
	Name         string `toml:"name"`
	Country      string `toml:"country"`
	ReceiverType string `toml:"receiver_type"`
	AntennaType  string `toml:"antenna_type"`
	Observer     string `toml:"observer"`
}

// Converter configures the external RINEX converter collaborators.
type Converter struct {
	PrimaryPath  string `toml:"primary_path"`
	FallbackPath string `toml:"fallback_path"`
	SkipNav      bool   `toml:"skip_nav"`
	Sampling     string `toml:"sampling"`
	Crinex       bool   `toml:"crinex"`
	Gzip         bool   `toml:"gzip"`
}

// Capture controls the ingestion loop.
type Capture struct {
	FlushIntervalSecs int `toml:"flush_interval_secs"`
	StatsIntervalSecs int `toml:"stats_interval_secs"`
}

// NMEA controls the periodic status sentence reporter.
type NMEA struct {
	ReportIntervalSecs int    `toml:"report_interval_secs"`
	ReportFormat       string `toml:"report_format"`
}

// Conversion controls the background worker and batch window.
type Conversion struct {
	ConvertOnStart   bool `toml:"convert_on_start"`
	ShiftHours       int  `toml:"shift_hours"`
	MaxDaysBack      int  `toml:"max_days_back"`
	KeepRaw          bool `toml:"keep_raw"`
	CompressRetained bool `toml:"compress_retained"`
	PollIntervalSecs int  `toml:"poll_interval_secs"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for gnsstec.
type Config struct {
	Serial     Serial     `toml:"serial"`
	Paths      Paths      `toml:"paths"`
	Station    Station    `toml:"station"`
	Converter  Converter  `toml:"converter"`
	Capture    Capture    `toml:"capture"`
	NMEA       NMEA       `toml:"nmea"`
	Conversion Conversion `toml:"conversion"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/gnsstec/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second and third
// return values report the resolved path and whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("gnsstec.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ArchiveDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockFilePath returns the single-instance lock file path under the data directory.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "gnsstec.lock")
}

// QueueDBPath returns the conversion job database path under the data directory.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// WorkspaceRoot returns the scratch directory conversions run inside.
func (c *Config) WorkspaceRoot() string {
	return filepath.Join(c.Paths.DataDir, ".convert-work")
}

// LogFilePath returns the daemon log file path.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "gnsstec.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
