package ocspguard

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, dir, contents string) string {
	t.Helper()
	p := filepath.Join(dir, defaultConfigName)
	if err := os.WriteFile(p, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return p
}

func TestUnitLoadFileConfigExplicitPath(t *testing.T) {
	dir := t.TempDir()
	p := writeConfigFile(t, dir, `{"common":{"log_level":"debug","timeout_ms":500}}`)

	cfg, err := LoadFileConfig(p)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if cfg == nil || cfg.Common == nil {
		t.Fatal("LoadFileConfig() returned nil config")
	}
	if cfg.Common.TimeoutMs != 500 {
		t.Errorf("TimeoutMs = %d, want 500", cfg.Common.TimeoutMs)
	}
}

func TestUnitLoadFileConfigMissingReturnsNil(t *testing.T) {
	cfg, err := LoadFileConfig(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if cfg != nil {
		t.Errorf("LoadFileConfig() = %+v, want nil", cfg)
	}
}

func TestUnitLoadFileConfigRejectsGroupWritable(t *testing.T) {
	dir := t.TempDir()
	p := writeConfigFile(t, dir, `{"common":{"log_level":"info"}}`)
	if err := os.Chmod(p, 0o660); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	if _, err := LoadFileConfig(p); err == nil {
		t.Fatal("expected error for group-writable config file")
	}
}

func TestUnitLoadFileConfigRejectsUnknownLogLevel(t *testing.T) {
	dir := t.TempDir()
	p := writeConfigFile(t, dir, `{"common":{"log_level":"super-verbose"}}`)

	if _, err := LoadFileConfig(p); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestUnitFileConfigApplyToOverlaysTimeout(t *testing.T) {
	cfg := &FileConfig{Common: &FileConfigCommonProps{TimeoutMs: 250}}
	opts := &Options{Timeout: time.Hour}

	if err := cfg.ApplyTo(opts); err != nil {
		t.Fatalf("ApplyTo() error = %v", err)
	}
	if opts.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %v, want 250ms", opts.Timeout)
	}
}

func TestUnitFileConfigApplyToNilIsNoop(t *testing.T) {
	var cfg *FileConfig
	opts := &Options{Timeout: time.Minute}
	if err := cfg.ApplyTo(opts); err != nil {
		t.Fatalf("ApplyTo() error = %v", err)
	}
	if opts.Timeout != time.Minute {
		t.Error("ApplyTo() on a nil *FileConfig mutated opts")
	}
}
