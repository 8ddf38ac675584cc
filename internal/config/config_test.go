package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("exists = true for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Fatalf("BaudRate = %d, want default 115200", cfg.Serial.BaudRate)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[serial]
port = " /dev/ttyUSB0 "
baud_rate = 9600

[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
archive_dir = "` + filepath.Join(dir, "archive") + `"
log_dir = "` + filepath.Join(dir, "log") + `"

[nmea]
report_format = "PLAIN"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("exists = false for written file")
	}
	if cfg.Serial.Port != "/dev/ttyUSB0" {
		t.Fatalf("Port = %q, want trimmed", cfg.Serial.Port)
	}
	if cfg.Serial.BaudRate != 9600 {
		t.Fatalf("BaudRate = %d", cfg.Serial.BaudRate)
	}
	if cfg.NMEA.ReportFormat != "plain" {
		t.Fatalf("ReportFormat = %q, want lowered", cfg.NMEA.ReportFormat)
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = ""
	cfg.Serial.BaudRate = 0
	cfg.NMEA.ReportFormat = "verbose"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !IsInvalid(err) {
		t.Fatalf("IsInvalid = false for %v", err)
	}
	for _, want := range []string{"serial.port", "serial.baud_rate", "nmea.report_format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidateSameDataAndArchiveDir(t *testing.T) {
	cfg := Default()
	cfg.Paths.ArchiveDir = cfg.Paths.DataDir
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for identical data and archive dirs")
	}
}

func TestValidateCompressRequiresKeep(t *testing.T) {
	cfg := Default()
	cfg.Conversion.CompressRetained = true
	cfg.Conversion.KeepRaw = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for compress_retained without keep_raw")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.ArchiveDir = filepath.Join(dir, "archive")
	cfg.Paths.LogDir = filepath.Join(dir, "log")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, p := range []string{cfg.Paths.DataDir, cfg.Paths.ArchiveDir, cfg.Paths.LogDir} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Errorf("missing directory %q: %v", p, err)
		}
	}
}

func TestCreateSampleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample not found after CreateSample")
	}
	if cfg.Station.Name == "" {
		t.Fatal("sample produced empty station name")
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.DataDir = "/data"
	if got := cfg.LockFilePath(); got != filepath.Join("/data", "gnsstec.lock") {
		t.Fatalf("LockFilePath = %q", got)
	}
	if got := cfg.QueueDBPath(); got != filepath.Join("/data", "queue.db") {
		t.Fatalf("QueueDBPath = %q", got)
	}
	if got := cfg.WorkspaceRoot(); got != filepath.Join("/data", ".convert-work") {
		t.Fatalf("WorkspaceRoot = %q", got)
	}
}
