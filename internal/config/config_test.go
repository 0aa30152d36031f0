package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swmon.conf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadFileOverridesOnlyListedKeys(t *testing.T) {
	path := writeTempConfig(t, "cpu_threshold=7.5\n#comment\nmax_inactive_cycles=4\n")

	cfg := Default()
	if err := cfg.LoadFile(path, nil); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.CPUThreshold != 7.5 {
		t.Errorf("cpu_threshold: got %v, want 7.5", cfg.CPUThreshold)
	}
	if cfg.MaxInactiveCycles != 4 {
		t.Errorf("max_inactive_cycles: got %d, want 4", cfg.MaxInactiveCycles)
	}
	// Everything else stays default.
	if cfg.WatchdogTimeout != DefaultWatchdogTimeout {
		t.Errorf("watchdog timeout changed unexpectedly: %v", cfg.WatchdogTimeout)
	}
	if cfg.MaxCPUThreshold != DefaultMaxCPUThreshold {
		t.Errorf("max cpu threshold changed unexpectedly: %v", cfg.MaxCPUThreshold)
	}
	if cfg.MemThreshold != DefaultMemThreshold || cfg.NetThreshold != DefaultNetThreshold {
		t.Errorf("thresholds changed unexpectedly: mem=%d net=%d", cfg.MemThreshold, cfg.NetThreshold)
	}
}

func TestLoadFileIgnoresUnknownKeysAndBlankLines(t *testing.T) {
	path := writeTempConfig(t, "\n# header\nnonsense_key=42\n\nwatchdog_timeout=120\n")

	cfg := Default()
	if err := cfg.LoadFile(path, nil); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.WatchdogTimeout != 120*time.Second {
		t.Errorf("watchdog_timeout: got %v, want 120s", cfg.WatchdogTimeout)
	}
}

func TestLoadFileMonitorIntervalSetsAllResources(t *testing.T) {
	path := writeTempConfig(t, "monitor_interval=5\n")

	cfg := Default()
	if err := cfg.LoadFile(path, nil); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.CPUInterval != 5*time.Second || cfg.MemInterval != 5*time.Second || cfg.NetInterval != 5*time.Second {
		t.Errorf("intervals: got cpu=%v mem=%v net=%v, want 5s each", cfg.CPUInterval, cfg.MemInterval, cfg.NetInterval)
	}
}

func TestLoadFileWarnsOnBadNumeric(t *testing.T) {
	path := writeTempConfig(t, "watchdog_timeout=banana\n")

	var warnings []string
	cfg := Default()
	if err := cfg.LoadFile(path, func(msg string) { warnings = append(warnings, msg) }); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.WatchdogTimeout != DefaultWatchdogTimeout {
		t.Errorf("bad value must not change the field: %v", cfg.WatchdogTimeout)
	}
	if len(warnings) != 1 {
		t.Errorf("expected one warning, got %v", warnings)
	}
}

func TestValidateClampsTimeoutFloor(t *testing.T) {
	cfg := Default()
	cfg.WatchdogTimeout = 3 * time.Second

	var warnings []string
	cfg.Validate(func(msg string) { warnings = append(warnings, msg) })

	if cfg.WatchdogTimeout != MinWatchdogTimeout {
		t.Errorf("timeout: got %v, want %v", cfg.WatchdogTimeout, MinWatchdogTimeout)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the timeout clamp")
	}
}

func TestValidateCorrectsMaxCPUThreshold(t *testing.T) {
	cfg := Default()
	cfg.CPUThreshold = 40
	cfg.MaxCPUThreshold = 30 // below low threshold, must be corrected to low+50

	var warnings []string
	cfg.Validate(func(msg string) { warnings = append(warnings, msg) })

	if cfg.MaxCPUThreshold != 90 {
		t.Errorf("max cpu threshold: got %v, want 90 (cpu_threshold+50)", cfg.MaxCPUThreshold)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the max cpu correction")
	}
}

func TestValidateCapsMaxCPUAt100(t *testing.T) {
	cfg := Default()
	cfg.CPUThreshold = 80
	cfg.MaxCPUThreshold = 80 // corrected to 130, then capped

	cfg.Validate(nil)
	if cfg.MaxCPUThreshold != 100 {
		t.Errorf("max cpu threshold: got %v, want 100", cfg.MaxCPUThreshold)
	}
}

func TestValidateClampsIntervals(t *testing.T) {
	cfg := Default()
	cfg.WatchdogTimeout = 60 * time.Second
	cfg.CPUInterval = 45 * time.Second // above timeout/2
	cfg.MemInterval = 0                // below floor

	cfg.Validate(nil)
	if cfg.CPUInterval != 10*time.Second {
		t.Errorf("cpu interval: got %v, want timeout/6 = 10s", cfg.CPUInterval)
	}
	if cfg.MemInterval != 10*time.Second {
		t.Errorf("mem interval: got %v, want timeout/6 = 10s", cfg.MemInterval)
	}
	if cfg.NetInterval != DefaultMonitorInterval {
		t.Errorf("net interval changed unexpectedly: %v", cfg.NetInterval)
	}
}

func TestValidateClampsMaxInactiveCycles(t *testing.T) {
	cfg := Default()
	cfg.MaxInactiveCycles = 0
	cfg.Validate(nil)
	if cfg.MaxInactiveCycles != 1 {
		t.Errorf("max inactive cycles: got %d, want 1", cfg.MaxInactiveCycles)
	}
}

func TestParseArgsFlagsOverrideFile(t *testing.T) {
	path := writeTempConfig(t, "watchdog_timeout=120\ncpu_threshold=2.0\n")

	cfg, err := ParseArgs([]string{"--config", path, "-w", "90"}, io.Discard, nil)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.WatchdogTimeout != 90*time.Second {
		t.Errorf("flag must override file: got %v, want 90s", cfg.WatchdogTimeout)
	}
	if cfg.CPUThreshold != 2.0 {
		t.Errorf("file value must survive when no flag given: got %v", cfg.CPUThreshold)
	}
}

func TestParseArgsDisableLog(t *testing.T) {
	cfg, err := ParseArgs([]string{"-d"}, io.Discard, nil)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.LogEnabled {
		t.Error("-d must disable logging")
	}
}

func TestParseArgsMissingExplicitConfigIsFatal(t *testing.T) {
	_, err := ParseArgs([]string{"--config", "/does/not/exist.conf"}, io.Discard, nil)
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
	if !strings.Contains(err.Error(), "failed to load configuration") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseArgsDryRun(t *testing.T) {
	cfg, err := ParseArgs([]string{"--dry-run", "--device", "/dev/watchdog1"}, io.Discard, nil)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if !cfg.DryRun {
		t.Error("--dry-run not applied")
	}
	if cfg.DevicePath != "/dev/watchdog1" {
		t.Errorf("device path: got %s", cfg.DevicePath)
	}
}
