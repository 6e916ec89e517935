package infra

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `
app:
  name: coinfeed
  version: 0.1.0
catalog:
  page_size: 25
providers:
  cmc:
    enabled: true
    api_key: file-key
  okx:
    enabled: true
engine:
  reconnect: true
logging:
  level: debug
  format: json
`

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.Catalog.PageSize != 25 {
		t.Errorf("expected page size 25, got %d", cfg.Catalog.PageSize)
	}
	if cfg.Catalog.BaseURL != "https://api.coingecko.com/api/v3" {
		t.Errorf("unexpected catalog base URL: %s", cfg.Catalog.BaseURL)
	}
	if cfg.Providers.OKX.WSURL != "wss://ws.okx.com:8443/ws/v5/public" {
		t.Errorf("unexpected OKX URL: %s", cfg.Providers.OKX.WSURL)
	}
	if cfg.Providers.OKX.QuoteCurrency != "USDT" {
		t.Errorf("expected USDT quote currency, got %s", cfg.Providers.OKX.QuoteCurrency)
	}
	if cfg.Engine.InboxSize != 1024 {
		t.Errorf("expected inbox size 1024, got %d", cfg.Engine.InboxSize)
	}
	if !cfg.Engine.Reconnect {
		t.Error("expected reconnect to be enabled")
	}
	if cfg.API.Addr != ":8080" {
		t.Errorf("expected default API addr, got %s", cfg.API.Addr)
	}
}

func TestParseConfig_EnvOverride(t *testing.T) {
	t.Setenv("COINFEED_CMC_KEY", "env-key")
	t.Setenv("COINFEED_API_ADDR", ":9090")

	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Providers.CMC.APIKey != "env-key" {
		t.Errorf("expected env key to win, got %s", cfg.Providers.CMC.APIKey)
	}
	if cfg.API.Addr != ":9090" {
		t.Errorf("expected env addr, got %s", cfg.API.Addr)
	}
}

func TestParseConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "CMC without key",
			yaml:    "providers:\n  cmc:\n    enabled: true\n",
			wantErr: "cmc provider",
		},
		{
			name:    "Mobula without key",
			yaml:    "providers:\n  mobula:\n    enabled: true\n",
			wantErr: "mobula provider",
		},
		{
			name:    "Bad OKX URL",
			yaml:    "providers:\n  okx:\n    enabled: true\n    ws_url: http://example.com\n",
			wantErr: "OKX WS URL",
		},
		{
			name:    "Page size too large",
			yaml:    "catalog:\n  page_size: 1000\n",
			wantErr: "page size",
		},
		{
			name:    "Bad catalog URL",
			yaml:    "catalog:\n  base_url: ftp://example.com\n",
			wantErr: "catalog base URL",
		},
		{
			name:    "Redis without address",
			yaml:    "redis:\n  enabled: true\n",
			wantErr: "redis",
		},
		{
			name:    "Unknown log format",
			yaml:    "logging:\n  format: xml\n",
			wantErr: "logging format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.App.Name != "coinfeed" {
		t.Errorf("expected app name coinfeed, got %s", cfg.App.Name)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestResolveConfigPath_Env(t *testing.T) {
	t.Setenv("COINFEED_CONFIG", "/tmp/custom.yaml")
	if got := ResolveConfigPath(); got != "/tmp/custom.yaml" {
		t.Errorf("expected env path, got %s", got)
	}
}

func TestParseConfig_SecretsFile(t *testing.T) {
	dir := t.TempDir()
	secrets := filepath.Join(dir, "secrets.yaml")
	if err := os.WriteFile(secrets, []byte("cmc:\n  api_key: secret-cmc\nmobula:\n  api_key: secret-mobula\nredis:\n  password: pw\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COINFEED_MOBULA_KEY", "env-mobula")

	cfg, err := ParseConfig([]byte("secrets_file: " + secrets + "\nproviders:\n  cmc:\n    enabled: true\n  mobula:\n    enabled: true\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Providers.CMC.APIKey != "secret-cmc" {
		t.Errorf("expected key from secrets file, got %q", cfg.Providers.CMC.APIKey)
	}
	if cfg.Providers.Mobula.APIKey != "env-mobula" {
		t.Errorf("expected env to win over secrets file, got %q", cfg.Providers.Mobula.APIKey)
	}
	if cfg.Redis.Password != "pw" {
		t.Errorf("expected redis password from secrets file, got %q", cfg.Redis.Password)
	}
}

func TestParseConfig_MissingSecretsFile(t *testing.T) {
	_, err := ParseConfig([]byte("secrets_file: " + filepath.Join(t.TempDir(), "none.yaml") + "\n"))
	if err == nil || !strings.Contains(err.Error(), "secret config") {
		t.Errorf("expected secrets read error, got %v", err)
	}
}

func TestParseConfig_BitgetAndPacing(t *testing.T) {
	cfg, err := ParseConfig([]byte("catalog:\n  requests_per_minute: 30\nproviders:\n  bitget:\n    enabled: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Providers.Bitget.WSURL != "wss://ws.bitget.com/v2/ws/public" || cfg.Providers.Bitget.QuoteCurrency != "USDT" {
		t.Errorf("unexpected bitget defaults: %+v", cfg.Providers.Bitget)
	}
	if cfg.Catalog.RequestsPerMinute != 30 {
		t.Errorf("expected 30 rpm, got %d", cfg.Catalog.RequestsPerMinute)
	}

	if _, err := ParseConfig([]byte("catalog:\n  requests_per_minute: -1\n")); err == nil {
		t.Error("expected error for negative pacing")
	}
	if _, err := ParseConfig([]byte("providers:\n  bitget:\n    enabled: true\n    ws_url: http://x\n")); err == nil {
		t.Error("expected error for non-ws bitget URL")
	}
}
