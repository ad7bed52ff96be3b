package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// Auth modes select how a request's namespace is resolved.
const (
	AuthHeader   = "header"
	AuthFirebase = "firebase"
)

const (
	defaultConfigPath = "~/.config/dashboard/config.toml"
	defaultSQLitePath = "~/.local/share/dashboard/dashboard.db"
	defaultLogFile    = "~/.local/share/dashboard/dashctl.log"
	defaultPort       = "8080"
	defaultNamespace  = "home"
	defaultLogLevel   = "info"
)

type Config struct {
	ProjectID    string `toml:"project_id"`
	LogLevel     string `toml:"log_level"`
	Port         string `toml:"port"`
	StoreBackend string `toml:"store_backend"`
	SQLitePath   string `toml:"sqlite_path"`
	KMSKeyName   string `toml:"kms_key_name"`
	Namespace    string `toml:"namespace"`
	AuthMode     string `toml:"auth_mode"`
	// LogFile receives logs from the terminal UI, which owns stdout.
	LogFile string `toml:"log_file"`
}

func defaults() Config {
	return Config{
		LogLevel:     defaultLogLevel,
		Port:         defaultPort,
		StoreBackend: BackendSQLite,
		SQLitePath:   defaultSQLitePath,
		Namespace:    defaultNamespace,
		AuthMode:     AuthHeader,
		LogFile:      defaultLogFile,
	}
}

// New loads the file named by CONFIGFILE (or the default path) and then
// applies environment overrides.
func New() (*Config, error) {
	cfg, err := Load(os.Getenv("CONFIGFILE"))
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load parses the TOML file at path over the defaults. A missing file is
// not an error.
func Load(path string) (Config, error) {
	cfg := defaults()
	resolved, err := expandPath(orDefault(path, defaultConfigPath))
	if err != nil {
		return Config{}, err
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.expand()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var file Config
	if err := toml.Unmarshal(raw, &file); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.merge(file)
	cfg.expand()
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendSQLite:
	case BackendFirestore:
		if c.ProjectID == "" {
			return errors.New("firestore backend requires PROJECTID")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	switch c.AuthMode {
	case AuthHeader, AuthFirebase:
	default:
		return fmt.Errorf("unknown auth mode %q", c.AuthMode)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.merge(Config{
		ProjectID:    getenv("PROJECTID"),
		LogLevel:     getenv("LOGLEVEL"),
		Port:         getenv("PORT"),
		StoreBackend: getenv("STOREBACKEND"),
		SQLitePath:   getenv("SQLITEPATH"),
		KMSKeyName:   getenv("KMSKEYNAME"),
		Namespace:    getenv("NAMESPACE"),
		AuthMode:     getenv("AUTHMODE"),
		LogFile:      getenv("LOGFILE"),
	})
	c.expand()
}

// merge copies every non-empty field of o into c.
func (c *Config) merge(o Config) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.ProjectID, o.ProjectID)
	set(&c.LogLevel, o.LogLevel)
	set(&c.Port, o.Port)
	set(&c.StoreBackend, strings.ToLower(o.StoreBackend))
	set(&c.SQLitePath, o.SQLitePath)
	set(&c.KMSKeyName, o.KMSKeyName)
	set(&c.Namespace, o.Namespace)
	set(&c.AuthMode, strings.ToLower(o.AuthMode))
	set(&c.LogFile, o.LogFile)
}

func (c *Config) expand() {
	if c.SQLitePath != ":memory:" {
		c.SQLitePath = mustExpand(c.SQLitePath)
	}
	c.LogFile = mustExpand(c.LogFile)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
