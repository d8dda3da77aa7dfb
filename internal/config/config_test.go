package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/corebridge/acp/schema"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	InitViper(filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	path := filepath.Join(dir, "acpctl.yaml")
	contents := "log_level: debug\n" +
		"max_message_bytes: 2048\n" +
		"policies:\n" +
		"  - name: allow-reads\n" +
		"    expression: tool_kind == \"read\"\n" +
		"    select_kind: allow_always\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	InitViper(path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.MaxMessageBytes != 2048 {
		t.Errorf("MaxMessageBytes = %d, want 2048", cfg.MaxMessageBytes)
	}
	if len(cfg.Policies) != 1 {
		t.Fatalf("len(Policies) = %d, want 1", len(cfg.Policies))
	}

	rules := cfg.Rules()
	if rules[0].SelectKind != schema.PermissionKindAllowAlways {
		t.Errorf("SelectKind = %q, want allow_always", rules[0].SelectKind)
	}
}
