// Package config loads workout log settings from environment variables
// prefixed with WORKOUTLOG_.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/kjk/workoutlog/backup"
)

// EnvPrefix is prepended to every variable name
const EnvPrefix = "WORKOUTLOG_"

// Config holds settings of the workout log
type Config struct {
	// path of the backing journal file
	File string `env:"FILE" envDefault:"workouts.txt"`
	// directory for log files, empty means log only to stdout
	LogDir  string `env:"LOG_DIR"`
	Verbose bool   `env:"VERBOSE"`
	// journal is compacted when it has more than this many obsolete records.
	// 0 means the store's default, < 0 disables automatic compaction
	CompactThreshold int `env:"COMPACT_THRESHOLD" envDefault:"256"`
	// replaces '_' when showing entries
	DisplaySeparator string `env:"DISPLAY_SEPARATOR" envDefault:" | "`
	// directory for Tracker.Backup, empty means "backups" next to File
	BackupDir string `env:"BACKUP_DIR"`
	// one of: zstd, br, gz, txt
	BackupFormat string `env:"BACKUP_FORMAT" envDefault:"zstd"`
	// skip fsync after appends, only for tests
	NoSync bool `env:"NO_SYNC"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	opts := env.Options{Prefix: EnvPrefix}
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// FromEnv returns validated configuration read from environment
func FromEnv() (*Config, error) {
	var c Config
	if err := ParseEnv(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that settings make sense
func (c *Config) Validate() error {
	if c.File == "" {
		return errors.New("config: File is empty")
	}
	if c.DisplaySeparator == "" {
		return errors.New("config: DisplaySeparator is empty")
	}
	if _, err := backup.ParseFormat(c.BackupFormat); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
