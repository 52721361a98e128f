package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// fileConfig is the resolved configuration: defaults, then .goshawk.yaml
// (working directory or home), then GOSHAWK_* environment variables.
type fileConfig struct {
	Engine  string
	DSN     string
	History string
	Debug   bool
}

func loadConfig() fileConfig {
	v := viper.New()
	v.SetConfigName(".goshawk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	home, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(home)
	}
	v.SetEnvPrefix("GOSHAWK")
	v.AutomaticEnv()

	v.SetDefault("engine", "postgres")
	v.SetDefault("history", defaultHistoryPath(home))

	// A missing config file is fine; env and defaults still apply.
	_ = v.ReadInConfig()

	cfg := fileConfig{
		Engine:  v.GetString("engine"),
		DSN:     v.GetString("dsn"),
		History: v.GetString("history"),
		Debug:   v.GetBool("debug"),
	}
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}
	return cfg
}

func defaultHistoryPath(home string) string {
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".goshawk_history")
}
