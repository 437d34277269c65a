// Package config loads the recollect service configuration from YAML with
// environment expansion, falling back to built-in defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tidemark-ai/recollect/internal/memory"
	"github.com/tidemark-ai/recollect/internal/retention"
)

// ProviderConfig names the language-model backend used for summarization
// and generation. Model IDs come from here, never from code.
type ProviderConfig struct {
	Name   string `yaml:"name"` // "openai", "anthropic", or empty to disable
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ContextConfig is the default context policy plus per-thread overrides
type ContextConfig struct {
	Default   memory.Policy            `yaml:"default"`
	Overrides map[string]memory.Policy `yaml:"overrides,omitempty"`
}

// Config holds the full service configuration
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"` // empty disables storage (degraded mode)
	} `yaml:"database"`
	BotID      string                  `yaml:"bot_id"` // the assistant's own platform user ID
	Provider   ProviderConfig          `yaml:"provider"`
	Retention  retention.Config        `yaml:"retention"`
	Summarizer memory.SummarizerConfig `yaml:"summarizer"`
	Context    ContextConfig           `yaml:"context"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{
		Retention:  retention.DefaultConfig(),
		Summarizer: memory.DefaultSummarizerConfig(),
		Context: ContextConfig{
			Default: memory.DefaultPolicy(),
		},
	}
	cfg.Server.Addr = ":8474"
	cfg.Database.Path = "./data/recollect.db"
	return cfg
}

// Load reads config from path, layered over defaults. A missing file is not
// an error; the defaults apply. API keys and paths may reference environment
// variables with ${VAR} syntax.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolvePolicy returns the context policy for a thread: the per-thread
// override when one exists, the system default otherwise.
func (c *Config) ResolvePolicy(threadID string) memory.Policy {
	if pol, ok := c.Context.Overrides[threadID]; ok {
		return pol
	}
	return c.Context.Default
}
