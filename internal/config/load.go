package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load builds the run configuration: defaults, overlaid with the YAML
// file at path (when non-empty), overlaid with environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshalling yaml: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the environment variable surface carried over from
// the original deployment of this job.
func (c *Config) applyEnv() error {
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Region = v
	}
	if v := os.Getenv("SNS_TOPIC_ARN"); v != "" {
		c.TopicARN = v
	}
	if v := os.Getenv("RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RETENTION_DAYS %q: %w", v, err)
		}
		c.Retention.Days = days
	}
	if v := os.Getenv("MIN_SNAPSHOTS_TO_KEEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MIN_SNAPSHOTS_TO_KEEP %q: %w", v, err)
		}
		c.Retention.MinSnapshotsToKeep = n
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DRY_RUN %q: %w", v, err)
		}
		c.Retention.DryRun = &dryRun
	}
	if v := os.Getenv("PROTECTED_TAG_KEY"); v != "" {
		c.Tags.ProtectedKey = v
	}
	if v := os.Getenv("PROTECTED_TAG_VALUE"); v != "" {
		c.Tags.ProtectedValue = v
	}
	if v := os.Getenv("CRITICAL_VOLUME_TAG_KEY"); v != "" {
		c.Tags.CriticalKey = v
	}
	if v := os.Getenv("CRITICAL_VOLUME_TAG_VALUE"); v != "" {
		c.Tags.CriticalValue = v
	}
	return nil
}
