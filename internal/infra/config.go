package infra

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// currentUserAgent is swapped at runtime by tools that need to mimic another client.
	uaMu             sync.RWMutex
	currentUserAgent = GetPlatformUserAgent()
)

// GetUserAgent returns the current User-Agent string. (Thread-safe)
func GetUserAgent() string {
	uaMu.RLock()
	defer uaMu.RUnlock()
	return currentUserAgent
}

// SetUserAgent replaces the global User-Agent string. (Thread-safe)
func SetUserAgent(ua string) {
	uaMu.Lock()
	defer uaMu.Unlock()
	currentUserAgent = ua
}

// GetPlatformUserAgent builds a browser-like User-Agent for the current OS.
// Some public market-data endpoints reject Go's default agent.
func GetPlatformUserAgent() string {
	chromeVer := "120.0.0.0"

	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	case "linux":
		linuxArch := "x86_64"
		if runtime.GOARCH == "arm64" {
			linuxArch = "aarch64"
		}
		return fmt.Sprintf("Mozilla/5.0 (X11; Linux %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", linuxArch, chromeVer)
	case "darwin":
		return fmt.Sprintf("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	default:
		return "Mozilla/5.0 (compatible; CoinFeed/1.0)"
	}
}

// Config holds every setting of the service.
// LoadConfig reads it from yaml and then lets environment variables override secrets.
type Config struct {
	// SecretsFile optionally points at a SecretConfig yaml.
	SecretsFile string `yaml:"secrets_file"`

	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Catalog struct {
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"` // optional CoinGecko demo/pro key
		PageSize int    `yaml:"page_size"`
		// Outbound pacing shared by page loads and refreshes; 0 means unlimited.
		RequestsPerMinute int `yaml:"requests_per_minute"`
	} `yaml:"catalog"`

	Providers struct {
		CMC struct {
			Enabled bool   `yaml:"enabled"`
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"cmc"`
		Mobula struct {
			Enabled bool   `yaml:"enabled"`
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"mobula"`
		CoinGecko struct {
			// Re-poll the catalog source as a pull adapter for single-coin refreshes.
			Enabled bool `yaml:"enabled"`
		} `yaml:"coingecko"`
		OKX struct {
			Enabled       bool   `yaml:"enabled"`
			WSURL         string `yaml:"ws_url"`
			QuoteCurrency string `yaml:"quote_currency"`
		} `yaml:"okx"`
		Bitget struct {
			Enabled       bool   `yaml:"enabled"`
			WSURL         string `yaml:"ws_url"`
			QuoteCurrency string `yaml:"quote_currency"`
		} `yaml:"bitget"`
	} `yaml:"providers"`

	Engine struct {
		InboxSize int  `yaml:"inbox_size"`
		Reconnect bool `yaml:"reconnect"`
		Breaker   struct {
			Enabled          bool `yaml:"enabled"`
			FailureThreshold int  `yaml:"failure_threshold"`
			SuccessThreshold int  `yaml:"success_threshold"`
			TimeoutSec       int  `yaml:"timeout_sec"`
		} `yaml:"breaker"`
	} `yaml:"engine"`

	API struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"` // host patterns, e.g. "dash.example.com" or "*.example.com"
	} `yaml:"api"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTLSec   int    `yaml:"ttl_sec"`
	} `yaml:"redis"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "text" | "json"
	} `yaml:"logging"`
}

// LoadConfig reads and parses the yaml configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes raw yaml, applies defaults, the secrets file and env overrides, then validates.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	warnInlineSecrets(&cfg)

	if path := cfg.SecretsFile; path != "" {
		sc, err := LoadSecretConfig(path)
		if err != nil {
			return nil, err
		}
		sc.apply(&cfg)
	}
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.Catalog.PageSize == 0 {
		c.Catalog.PageSize = 20
	}
	if c.Providers.CMC.BaseURL == "" {
		c.Providers.CMC.BaseURL = "https://pro-api.coinmarketcap.com/v1"
	}
	if c.Providers.Mobula.BaseURL == "" {
		c.Providers.Mobula.BaseURL = "https://api.mobula.io"
	}
	if c.Providers.OKX.WSURL == "" {
		c.Providers.OKX.WSURL = "wss://ws.okx.com:8443/ws/v5/public"
	}
	if c.Providers.OKX.QuoteCurrency == "" {
		c.Providers.OKX.QuoteCurrency = "USDT"
	}
	if c.Providers.Bitget.WSURL == "" {
		c.Providers.Bitget.WSURL = "wss://ws.bitget.com/v2/ws/public"
	}
	if c.Providers.Bitget.QuoteCurrency == "" {
		c.Providers.Bitget.QuoteCurrency = "USDT"
	}
	if c.Engine.InboxSize == 0 {
		c.Engine.InboxSize = 1024
	}
	if c.Engine.Breaker.FailureThreshold == 0 {
		c.Engine.Breaker.FailureThreshold = 5
	}
	if c.Engine.Breaker.SuccessThreshold == 0 {
		c.Engine.Breaker.SuccessThreshold = 2
	}
	if c.Engine.Breaker.TimeoutSec == 0 {
		c.Engine.Breaker.TimeoutSec = 30
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.Redis.TTLSec == 0 {
		c.Redis.TTLSec = 120
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !hasPrefix(c.Catalog.BaseURL, "http://") && !hasPrefix(c.Catalog.BaseURL, "https://") {
		return fmt.Errorf("invalid catalog base URL: %s", c.Catalog.BaseURL)
	}
	if c.Catalog.PageSize <= 0 || c.Catalog.PageSize > 250 {
		return fmt.Errorf("catalog page size must be in 1..250, got %d", c.Catalog.PageSize)
	}

	if c.Providers.CMC.Enabled && c.Providers.CMC.APIKey == "" {
		return fmt.Errorf("cmc provider enabled without an API key")
	}
	if c.Providers.Mobula.Enabled && c.Providers.Mobula.APIKey == "" {
		return fmt.Errorf("mobula provider enabled without an API key")
	}

	okx := c.Providers.OKX
	if okx.Enabled && !hasPrefix(okx.WSURL, "ws://") && !hasPrefix(okx.WSURL, "wss://") {
		return fmt.Errorf("invalid OKX WS URL: %s", okx.WSURL)
	}
	bg := c.Providers.Bitget
	if bg.Enabled && !hasPrefix(bg.WSURL, "ws://") && !hasPrefix(bg.WSURL, "wss://") {
		return fmt.Errorf("invalid Bitget WS URL: %s", bg.WSURL)
	}

	if c.Catalog.RequestsPerMinute < 0 {
		return fmt.Errorf("catalog requests_per_minute must not be negative")
	}

	if c.Engine.InboxSize < 0 {
		return fmt.Errorf("engine inbox size must not be negative")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis enabled without an address")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown logging format: %s", c.Logging.Format)
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv lets environment variables take precedence over the config file.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("COINFEED_CG_KEY"); key != "" {
		cfg.Catalog.APIKey = key
	}
	if key := os.Getenv("COINFEED_CMC_KEY"); key != "" {
		cfg.Providers.CMC.APIKey = key
	}
	if key := os.Getenv("COINFEED_MOBULA_KEY"); key != "" {
		cfg.Providers.Mobula.APIKey = key
	}
	if pass := os.Getenv("COINFEED_REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}
	if addr := os.Getenv("COINFEED_API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}
}

func warnInlineSecrets(cfg *Config) {
	if cfg.Providers.CMC.APIKey != "" || cfg.Providers.Mobula.APIKey != "" {
		// slog is not configured yet at this point.
		fmt.Println("⚠️  SECURITY WARNING: API keys found in config file.")
		fmt.Println("   Recommendation: use secrets_file or COINFEED_CMC_KEY / COINFEED_MOBULA_KEY instead.")
	}
}
