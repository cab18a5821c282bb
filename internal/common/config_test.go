package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.Server.Port != 8080 {
		t.Errorf("default server port = %d, want 8080", config.Server.Port)
	}
	if config.Storage.Badger.Path != "./data" {
		t.Errorf("default badger path = %q, want ./data", config.Storage.Badger.Path)
	}
	if config.LLM.DefaultProvider != LLMProviderGemini {
		t.Errorf("default LLM provider = %q, want gemini", config.LLM.DefaultProvider)
	}
	if config.Engine.Concurrency <= 0 {
		t.Errorf("default engine concurrency = %d, want > 0", config.Engine.Concurrency)
	}
	if config.Engine.DraftTTL <= 0 {
		t.Errorf("default draft TTL = %v, want > 0", config.Engine.DraftTTL)
	}
	if !config.AllowTestURLs() {
		t.Error("development default should allow test URLs")
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geoscope.toml")
	content := `
environment = "production"

[server]
port = 9090
host = "0.0.0.0"

[engine]
concurrency = 5
max_urls = 10

[llm]
default_provider = "claude"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Server.Port != 9090 {
		t.Errorf("server port = %d, want 9090", config.Server.Port)
	}
	if config.Server.Host != "0.0.0.0" {
		t.Errorf("server host = %q, want 0.0.0.0", config.Server.Host)
	}
	if config.Engine.Concurrency != 5 {
		t.Errorf("engine concurrency = %d, want 5", config.Engine.Concurrency)
	}
	if config.Engine.MaxURLs != 10 {
		t.Errorf("engine max URLs = %d, want 10", config.Engine.MaxURLs)
	}
	if config.LLM.DefaultProvider != LLMProviderClaude {
		t.Errorf("LLM provider = %q, want claude", config.LLM.DefaultProvider)
	}
	if !config.IsProduction() {
		t.Error("environment = production should report IsProduction")
	}
	// Unset values keep their defaults
	if config.Resolver.Endpoint == "" {
		t.Error("resolver endpoint default should survive partial config")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEOSCOPE_SERVER_PORT", "7070")
	t.Setenv("GEOSCOPE_ENGINE_DRAFT_TTL", "2h")
	t.Setenv("GEOSCOPE_LLM_DEFAULT_PROVIDER", "claude")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}

	if config.Server.Port != 7070 {
		t.Errorf("server port = %d, want 7070 from env", config.Server.Port)
	}
	if config.Engine.DraftTTL != 2*time.Hour {
		t.Errorf("draft TTL = %v, want 2h from env", config.Engine.DraftTTL)
	}
	if config.LLM.DefaultProvider != LLMProviderClaude {
		t.Errorf("LLM provider = %q, want claude from env", config.LLM.DefaultProvider)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 3000, "127.0.0.1")
	if config.Server.Port != 3000 || config.Server.Host != "127.0.0.1" {
		t.Errorf("flag overrides not applied: port=%d host=%q", config.Server.Port, config.Server.Host)
	}

	// Zero values leave config untouched
	ApplyFlagOverrides(config, 0, "")
	if config.Server.Port != 3000 || config.Server.Host != "127.0.0.1" {
		t.Error("zero flag values should not override config")
	}
}

func TestValidateEvictionSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{name: "hourly with seconds field", schedule: "0 0 * * * *", wantErr: false},
		{name: "every five minutes", schedule: "0 */5 * * * *", wantErr: false},
		{name: "empty", schedule: "", wantErr: true},
		{name: "garbage", schedule: "not a schedule", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvictionSchedule(tt.schedule)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEvictionSchedule(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
			}
		})
	}
}
