package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SecretConfig is a separate yaml file holding provider credentials, so the
// main config can be committed. Env variables still win over it.
type SecretConfig struct {
	CoinGecko struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"coingecko"`
	CMC struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"cmc"`
	Mobula struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"mobula"`
	Redis struct {
		Password string `yaml:"password"`
	} `yaml:"redis"`
}

// LoadSecretConfig loads API keys from a separate yaml file.
// It returns error if file is missing (Fail Fast).
func LoadSecretConfig(path string) (*SecretConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret config: %w", err)
	}

	var sc SecretConfig
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse secret config: %w", err)
	}

	return &sc, nil
}

func (sc *SecretConfig) apply(cfg *Config) {
	if sc.CoinGecko.APIKey != "" {
		cfg.Catalog.APIKey = sc.CoinGecko.APIKey
	}
	if sc.CMC.APIKey != "" {
		cfg.Providers.CMC.APIKey = sc.CMC.APIKey
	}
	if sc.Mobula.APIKey != "" {
		cfg.Providers.Mobula.APIKey = sc.Mobula.APIKey
	}
	if sc.Redis.Password != "" {
		cfg.Redis.Password = sc.Redis.Password
	}
}
