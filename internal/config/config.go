package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// Config holds runtime settings for the pinvault shell.
type Config struct {
	DataDir      string
	StoreBackend string
	SnapshotName string
	LogLevel     string

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	// UnlockTimeout locks the vault after this much idle time; 0 disables.
	UnlockTimeout time.Duration
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = defaultDataDir()
	c.StoreBackend = BackendFile
	c.SnapshotName = "vault.db"
	c.LogLevel = "warn"
	c.UnlockTimeout = 5 * time.Minute
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pinvault"
	}
	return filepath.Join(home, ".pinvault")
}

// Validate rejects combinations the shell cannot run with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFile:
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3 backend requires s3_bucket")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir is empty")
	}
	if c.SnapshotName == "" {
		return fmt.Errorf("snapshot name is empty")
	}
	if c.UnlockTimeout < 0 {
		return fmt.Errorf("unlock timeout is negative")
	}
	return nil
}

// LoadConfig applies defaults, then the JSON file, then flags from args
// (normally os.Args[1:]), and validates the result.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
