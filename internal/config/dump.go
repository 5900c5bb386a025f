package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const redacted = "********"

// Redacted returns a copy with credentials masked.
func (c Config) Redacted() Config {
	if c.OpenAI.APIKey != "" {
		c.OpenAI.APIKey = redacted
	}
	if c.Storage.S3.SecretAccessKey != "" {
		c.Storage.S3.SecretAccessKey = redacted
	}
	return c
}

// YAML renders the configuration in the same shape Load reads.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
