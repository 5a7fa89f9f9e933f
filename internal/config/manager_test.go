package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
site:
  base_url: https://example.com
  sitemap_path: public/sitemap-index.xml
google:
  client_email: svc@project.iam.gserviceaccount.com
indexnow:
  key: abc123
`

func TestManager_LoadAppliesDefaults(t *testing.T) {
	cfg, err := NewManager().Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Google.DailyLimit != 200 {
		t.Errorf("Google.DailyLimit = %d, want default 200", cfg.Google.DailyLimit)
	}
	if cfg.Google.BatchSize != 10 {
		t.Errorf("Google.BatchSize = %d, want default 10", cfg.Google.BatchSize)
	}
	if cfg.Submitter.PerURLDelayMs != 1000 || cfg.Submitter.BatchDelayMs != 2000 {
		t.Errorf("Submitter delays = %d/%d, want defaults 1000/2000",
			cfg.Submitter.PerURLDelayMs, cfg.Submitter.BatchDelayMs)
	}
	if cfg.RateLimit.RequestsPerMinute != 10 {
		t.Errorf("RateLimit.RequestsPerMinute = %d, want default 10", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.Site.BaseURL != "https://example.com" {
		t.Errorf("Site.BaseURL = %q", cfg.Site.BaseURL)
	}
}

func TestManager_LoadExplicitValuesWin(t *testing.T) {
	cfg, err := NewManager().Load(writeConfig(t, validConfig+`
server:
  port: 9090
google:
  daily_limit: 50
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Google.DailyLimit != 50 {
		t.Errorf("Google.DailyLimit = %d, want 50", cfg.Google.DailyLimit)
	}
}

func TestManager_LoadRejectsMissingBaseURL(t *testing.T) {
	_, err := NewManager().Load(writeConfig(t, `
site:
  sitemap_path: public/sitemap-index.xml
`))
	if err == nil {
		t.Fatal("Load() succeeded without site.base_url")
	}
}

func TestManager_LoadRejectsRelativeBaseURL(t *testing.T) {
	_, err := NewManager().Load(writeConfig(t, `
site:
  base_url: example.com/no-scheme
  sitemap_path: public/sitemap-index.xml
`))
	if err == nil {
		t.Fatal("Load() accepted a base URL without a scheme")
	}
}

func TestManager_LoadRejectsMissingSitemapPath(t *testing.T) {
	_, err := NewManager().Load(writeConfig(t, `
site:
  base_url: https://example.com
`))
	if err == nil {
		t.Fatal("Load() succeeded without site.sitemap_path")
	}
}

func TestManager_LoadMissingFile(t *testing.T) {
	_, err := NewManager().Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() succeeded on a missing file")
	}
}

func TestManager_GetConfigAfterLoad(t *testing.T) {
	m := NewManager()
	if m.GetConfig() != nil {
		t.Fatal("GetConfig() before Load should be nil")
	}
	if _, err := m.Load(writeConfig(t, validConfig)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.GetConfig() == nil {
		t.Fatal("GetConfig() after Load should not be nil")
	}
}
