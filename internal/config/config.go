package config

import (
	"time"

	"github.com/opsgrove/snapsweep/pkg/policy"
)

// Config is the environment-level configuration of a run. Precedence,
// lowest to highest: built-in defaults, YAML file, environment
// variables, command-line flags (applied by the CLI).
type Config struct {
	Region    string `yaml:"region"`
	TopicARN  string `yaml:"topicArn"`
	Schedule  string `yaml:"schedule"`
	LogLevel  string `yaml:"logLevel"`
	Retention struct {
		Days               int   `yaml:"days"`
		MinSnapshotsToKeep int   `yaml:"minSnapshotsToKeep"`
		DryRun             *bool `yaml:"dryRun"`
	} `yaml:"retention"`
	Tags struct {
		ProtectedKey   string `yaml:"protectedKey"`
		ProtectedValue string `yaml:"protectedValue"`
		CriticalKey    string `yaml:"criticalKey"`
		CriticalValue  string `yaml:"criticalValue"`
	} `yaml:"tags"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Region:   "us-east-1",
		LogLevel: "info",
	}
	cfg.Retention.Days = 30
	cfg.Retention.MinSnapshotsToKeep = 3
	cfg.Tags.ProtectedKey = "ProtectSnapshot"
	cfg.Tags.ProtectedValue = "true"
	cfg.Tags.CriticalKey = "CriticalVolume"
	cfg.Tags.CriticalValue = "true"
	return cfg
}

// Policy builds the immutable retention policy for this run.
func (c *Config) Policy() policy.RetentionPolicy {
	dryRun := true
	if c.Retention.DryRun != nil {
		dryRun = *c.Retention.DryRun
	}
	return policy.RetentionPolicy{
		RetentionAge:       time.Duration(c.Retention.Days) * 24 * time.Hour,
		MinSnapshotsToKeep: c.Retention.MinSnapshotsToKeep,
		ProtectedTagKey:    c.Tags.ProtectedKey,
		ProtectedTagValue:  c.Tags.ProtectedValue,
		CriticalTagKey:     c.Tags.CriticalKey,
		CriticalTagValue:   c.Tags.CriticalValue,
		DryRun:             dryRun,
	}
}
