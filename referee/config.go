// ABOUTME: Session configuration for the referee engine, loaded from YAML.
// ABOUTME: Covers provider selection, per-role models, deadlines, and the rules database path.

package referee

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelConfig names the model used for each agent role. Unset roles fall
// back to the provider adapter's default model.
type ModelConfig struct {
	Narrator   string `yaml:"narrator"`
	Detector   string `yaml:"detector"`
	Combat     string `yaml:"combat"`
	Resource   string `yaml:"resource"`
	Effect     string `yaml:"effect"`
	Summarizer string `yaml:"summarizer"`
}

// Config is the full session configuration.
type Config struct {
	// Provider routes all agent calls to a registered provider adapter.
	// Empty means the client's default provider.
	Provider string `yaml:"provider"`

	Models ModelConfig `yaml:"models"`

	// Temperature applies to the extraction agents; the narrator always
	// runs at NarratorTemperature.
	Temperature         float64 `yaml:"temperature"`
	NarratorTemperature float64 `yaml:"narrator_temperature"`
	MaxTokens           int     `yaml:"max_tokens"`

	// ExtractorDeadlineSeconds bounds each specialist extractor call.
	ExtractorDeadlineSeconds int `yaml:"extractor_deadline_seconds"`

	// MaxToolRounds caps narrator tool-call round trips per narration.
	MaxToolRounds int `yaml:"max_tool_rounds"`

	RulesDBPath string `yaml:"rules_db_path"`

	// HTTP listen address for the serve command.
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() Config {
	return Config{
		NarratorTemperature:      0.8,
		Temperature:              0.1,
		MaxTokens:                4096,
		ExtractorDeadlineSeconds: 45,
		MaxToolRounds:            8,
		RulesDBPath:              "rules.db",
		ListenAddr:               ":8080",
	}
}

// LoadConfig reads a YAML config file, filling unset fields with defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.NarratorTemperature == 0 {
		c.NarratorTemperature = d.NarratorTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.ExtractorDeadlineSeconds == 0 {
		c.ExtractorDeadlineSeconds = d.ExtractorDeadlineSeconds
	}
	if c.MaxToolRounds == 0 {
		c.MaxToolRounds = d.MaxToolRounds
	}
	if c.RulesDBPath == "" {
		c.RulesDBPath = d.RulesDBPath
	}
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
}

// ExtractorDeadline returns the per-task extractor deadline as a duration.
func (c Config) ExtractorDeadline() time.Duration {
	return time.Duration(c.ExtractorDeadlineSeconds) * time.Second
}
