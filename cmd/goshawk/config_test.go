package main

import (
	"os"
	"path/filepath"
	"testing"
)

// These tests mutate the environment, so none of them run in parallel.

// chdir changes into dir for the duration of the test. It stands in for
// testing.T.Chdir, which needs Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			panic("chdir cleanup: " + err.Error())
		}
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	chdir(t, t.TempDir())

	cfg := loadConfig()
	if cfg.Engine != "postgres" {
		t.Errorf("default engine = %q, want postgres", cfg.Engine)
	}
	if cfg.History != filepath.Join(home, ".goshawk_history") {
		t.Errorf("default history = %q", cfg.History)
	}
	if cfg.Debug {
		t.Error("debug should default to false")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())
	t.Setenv("GOSHAWK_ENGINE", "mysql")
	t.Setenv("GOSHAWK_DSN", "root@tcp(localhost:3306)/test")
	t.Setenv("GOSHAWK_DEBUG", "true")

	cfg := loadConfig()
	if cfg.Engine != "mysql" {
		t.Errorf("engine = %q, want mysql", cfg.Engine)
	}
	if cfg.DSN != "root@tcp(localhost:3306)/test" {
		t.Errorf("dsn = %q", cfg.DSN)
	}
	if !cfg.Debug {
		t.Error("GOSHAWK_DEBUG=true should enable debug")
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	yaml := "engine: sqlite\ndsn: file:test.db\ndebug: true\n"
	if err := os.WriteFile(filepath.Join(dir, ".goshawk.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg := loadConfig()
	if cfg.Engine != "sqlite" {
		t.Errorf("engine = %q, want sqlite", cfg.Engine)
	}
	if cfg.DSN != "file:test.db" {
		t.Errorf("dsn = %q", cfg.DSN)
	}
	if !cfg.Debug {
		t.Error("config file should enable debug")
	}
}

func TestLoadConfigEnvBeatsFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".goshawk.yaml"), []byte("engine: sqlite\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	t.Setenv("GOSHAWK_ENGINE", "mysql")

	if cfg := loadConfig(); cfg.Engine != "mysql" {
		t.Errorf("engine = %q, want mysql (env over file)", cfg.Engine)
	}
}

func TestLoadConfigDatabaseURLFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://app@localhost:5432/app")

	if cfg := loadConfig(); cfg.DSN != "postgres://app@localhost:5432/app" {
		t.Errorf("dsn = %q, want DATABASE_URL fallback", cfg.DSN)
	}
}

func TestLoadConfigExplicitDSNBeatsDatabaseURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://fallback@localhost:5432/x")
	t.Setenv("GOSHAWK_DSN", "file:primary.db")

	if cfg := loadConfig(); cfg.DSN != "file:primary.db" {
		t.Errorf("dsn = %q, want GOSHAWK_DSN to win", cfg.DSN)
	}
}

func TestDefaultHistoryPathEmptyHome(t *testing.T) {
	t.Parallel()
	if got := defaultHistoryPath(""); got != "" {
		t.Errorf("expected empty path for empty home, got %q", got)
	}
}
