// Package config loads the dashboard configuration from YAML with
// environment variable expansion, plus an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Domain  string `yaml:"domain"`
		DataDir string `yaml:"dataDir"`
	} `yaml:"app"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		AccessSecret       string `yaml:"accessSecret"`
		AccessExpire       int64  `yaml:"accessExpire"`       // seconds
		RefreshTokenExpire int64  `yaml:"refreshTokenExpire"` // seconds
		DefaultUserEmail   string `yaml:"defaultUserEmail"`
	} `yaml:"auth"`
	Database struct {
		SQLitePath string `yaml:"sqlitePath"`
	} `yaml:"database"`
	Appearance struct {
		Theme string `yaml:"theme"` // light, dark, system
	} `yaml:"appearance"`
	ActivityLog struct {
		Enabled       string `yaml:"enabled"`
		RetentionDays int    `yaml:"retentionDays"`
	} `yaml:"activityLog"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var c Config
	c.App.Domain = "localhost"
	c.App.DataDir = "./data"
	c.Server.Port = 27460
	c.Auth.AccessExpire = 3600
	c.Auth.RefreshTokenExpire = 604800
	c.Auth.DefaultUserEmail = "owner@localhost"
	c.Database.SQLitePath = "./data/blockboard.db"
	c.Appearance.Theme = "system"
	c.ActivityLog.Enabled = "true"
	c.ActivityLog.RetentionDays = 30
	return c
}

// Load reads the YAML file at path, expanding ${VAR} references from
// the environment. A .env file next to the config is loaded first so
// its values participate in expansion. A missing file yields defaults.
func Load(path string) (Config, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML bytes over the default configuration.
func LoadFromBytes(data []byte) (Config, error) {
	c := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// parseBool parses a string as boolean with a default value.
// Accepts "true", "1", "yes" as true; empty returns the default.
func parseBool(s string, defaultVal bool) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return defaultVal
	}
	return s == "true" || s == "1" || s == "yes"
}

func (c Config) IsActivityLogEnabled() bool {
	return parseBool(c.ActivityLog.Enabled, true)
}
