package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration file (~/.appconfig/config.yaml).
type Config struct {
	DefaultProfile string             `yaml:"default_profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile holds the coordinates of one service instance.
type Profile struct {
	Region      string `yaml:"region"`
	Guid        string `yaml:"guid"`
	APIKey      string `yaml:"apikey"`
	BaseURL     string `yaml:"base_url,omitempty"` // overrides the region-derived host
	Collection  string `yaml:"collection"`
	Environment string `yaml:"environment"`
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".appconfig", "config.yaml"), nil
}

// LoadConfig loads the configuration from file. A missing file yields an
// empty config rather than an error.
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Profiles: make(map[string]Profile)}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// SaveConfig saves the configuration to file.
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FlagOverrides carries the per-invocation values that take precedence
// over environment variables and the config file.
type FlagOverrides struct {
	Region      string
	Guid        string
	APIKey      string
	BaseURL     string
	Collection  string
	Environment string
}

// ResolveProfile builds the effective profile.
// Priority: command flags > environment variables > config file.
func ResolveProfile(profileName string, flags FlagOverrides) (*Profile, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	if profileName == "" {
		profileName = cfg.DefaultProfile
	}

	var p Profile
	if profileName != "" {
		stored, ok := cfg.Profiles[profileName]
		if !ok {
			return nil, fmt.Errorf("profile '%s' not found in config", profileName)
		}
		p = stored
	}

	applyEnv(&p)
	applyFlags(&p, flags)

	if p.Region == "" && p.BaseURL == "" {
		return nil, fmt.Errorf("either a region or a base URL must be configured")
	}
	if p.Guid == "" || p.APIKey == "" {
		return nil, fmt.Errorf("guid and apikey must be configured")
	}
	if p.Collection == "" || p.Environment == "" {
		return nil, fmt.Errorf("collection and environment must be configured")
	}
	return &p, nil
}

func applyEnv(p *Profile) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&p.Region, "APPCONFIG_REGION")
	set(&p.Guid, "APPCONFIG_GUID")
	set(&p.APIKey, "APPCONFIG_APIKEY")
	set(&p.BaseURL, "APPCONFIG_BASE_URL")
	set(&p.Collection, "APPCONFIG_COLLECTION")
	set(&p.Environment, "APPCONFIG_ENVIRONMENT")
}

func applyFlags(p *Profile, f FlagOverrides) {
	if f.Region != "" {
		p.Region = f.Region
	}
	if f.Guid != "" {
		p.Guid = f.Guid
	}
	if f.APIKey != "" {
		p.APIKey = f.APIKey
	}
	if f.BaseURL != "" {
		p.BaseURL = f.BaseURL
	}
	if f.Collection != "" {
		p.Collection = f.Collection
	}
	if f.Environment != "" {
		p.Environment = f.Environment
	}
}

// InitConfig creates a starter config file.
func InitConfig() error {
	cfg := &Config{
		DefaultProfile: "local",
		Profiles: map[string]Profile{
			"local": {
				BaseURL:     "http://localhost:8090",
				Guid:        "local",
				APIKey:      "dev-key-123",
				Collection:  "web",
				Environment: "dev",
			},
			"prod": {
				Region:      "us-south",
				Guid:        "instance-guid",
				APIKey:      "prod-key-789",
				Collection:  "web",
				Environment: "prod",
			},
		},
	}
	return SaveConfig(cfg)
}
