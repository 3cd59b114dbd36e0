package rebalance

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMaxRebalanceDelay is the default grace window for missing workers.
const DefaultMaxRebalanceDelay = 5 * time.Minute

// Config controls the assignor's rebalancing behavior.
type Config struct {
	// MaxRebalanceDelay bounds the scheduled-rebalance grace window: when a
	// worker disappears, its connectors and tasks are held unassigned for up
	// to this long before being redistributed to the remaining workers.
	//
	// Zero disables the grace window entirely; a disappeared worker's load
	// is redistributed on the next round. Must not be negative.
	MaxRebalanceDelay time.Duration `yaml:"maxRebalanceDelay"`
}

// DefaultConfig returns the configuration used when New receives nil.
//
// Returns:
//   - Config: Configuration with MaxRebalanceDelay of 5 minutes
func DefaultConfig() Config {
	return Config{MaxRebalanceDelay: DefaultMaxRebalanceDelay}
}

// UnmarshalYAML decodes the config from YAML, accepting durations in
// time.ParseDuration form (e.g. "90s", "5m"). Absent fields keep their
// current values so defaults survive partial configs.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxRebalanceDelay string `yaml:"maxRebalanceDelay"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.MaxRebalanceDelay != "" {
		delay, err := time.ParseDuration(raw.MaxRebalanceDelay)
		if err != nil {
			return fmt.Errorf("invalid maxRebalanceDelay: %w", err)
		}
		c.MaxRebalanceDelay = delay
	}

	return nil
}

// Validate checks configuration validity.
//
// Returns an error if any field is invalid.
func (c *Config) Validate() error {
	if c.MaxRebalanceDelay < 0 {
		return fmt.Errorf("maxRebalanceDelay must not be negative, got %s", c.MaxRebalanceDelay)
	}

	return nil
}

// LoadConfig reads a Config from a YAML file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Parsed configuration
//   - error: Read or parse failure, or validation failure
//
// Example:
//
//	cfg, err := rebalance.LoadConfig("configs/assignor.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	assignor, err := rebalance.New(cfg)
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
