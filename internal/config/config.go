package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir        string
	DBPath         string
	WorkflowsDir   string
	DefaultTimeout time.Duration
	PythonBin      string
	ListenAddr     string
}

func New() (*Config, error) {
	// A .env next to the binary is optional.
	_ = godotenv.Load()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("RUNBOOK_DATA_DIR", filepath.Join(homeDir, ".runbook"))

	c := &Config{
		DataDir:        dataDir,
		DBPath:         filepath.Join(dataDir, "history.db"),
		WorkflowsDir:   filepath.Join(dataDir, "workflows"),
		DefaultTimeout: getDurationSeconds("RUNBOOK_DEFAULT_TIMEOUT", 300),
		PythonBin:      getEnv("RUNBOOK_PYTHON", "python3"),
		ListenAddr:     getEnv("RUNBOOK_LISTEN_ADDR", ":8099"),
	}

	return c, nil
}

func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.WorkflowsDir, 0755)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDurationSeconds(key string, defaultSeconds int) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}
