package area

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigCacheLoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()

	content := `
label: "Downtown Toronto"

settings:
  enabled: true
  refresh_interval: 43200
  max_results: 50

queries:
  - "milk"
  - "bread"
`

	err := os.WriteFile(filepath.Join(tempDir, "M5V3A8.yml"), []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}

	configCache := NewConfigCache(tempDir)
	err = configCache.Run()
	if err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 areaConfig, got %d", configCache.GetConfigCount())
	}

	areaConfig, err := configCache.GetConfig("M5V3A8")
	if err != nil {
		t.Fatal(err)
	}

	if areaConfig.Key != "M5V3A8" {
		t.Errorf("Expected key 'M5V3A8', got '%s'", areaConfig.Key)
	}
	if areaConfig.Label != "Downtown Toronto" {
		t.Errorf("Expected label 'Downtown Toronto', got '%s'", areaConfig.Label)
	}
	if areaConfig.Settings.RefreshInterval != 43200 {
		t.Errorf("Expected refresh interval 43200, got %d", areaConfig.Settings.RefreshInterval)
	}
	if areaConfig.Settings.MaxResults != 50 {
		t.Errorf("Expected max results 50, got %d", areaConfig.Settings.MaxResults)
	}
	if len(areaConfig.Queries) != 2 {
		t.Errorf("Expected 2 queries, got %d", len(areaConfig.Queries))
	}
}

func TestConfigCacheLoadConfigWithDefaults(t *testing.T) {
	tempDir := t.TempDir()

	content := `
settings:
  enabled: true
`

	err := os.WriteFile(filepath.Join(tempDir, "M5V3A8.yml"), []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	areaConfig, err := configCache.GetConfig("M5V3A8")
	if err != nil {
		t.Fatal(err)
	}

	if areaConfig.Settings.RefreshInterval != 86400 {
		t.Errorf("Expected default refresh interval 86400, got %d", areaConfig.Settings.RefreshInterval)
	}
	if areaConfig.Settings.MaxResults != 100 {
		t.Errorf("Expected default max results 100, got %d", areaConfig.Settings.MaxResults)
	}
	if len(areaConfig.Queries) == 0 {
		t.Error("Expected default queries, got none")
	}
}

func TestConfigCacheNormalizesLookupKey(t *testing.T) {
	tempDir := t.TempDir()

	err := os.WriteFile(filepath.Join(tempDir, "M5V3A8.yml"), []byte("settings:\n  enabled: true\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	areaConfig, err := configCache.GetConfig("m5v 3a8")
	if err != nil {
		t.Fatalf("Expected lookup with unnormalized key to succeed: %v", err)
	}
	if areaConfig.Key != "M5V3A8" {
		t.Errorf("Expected key 'M5V3A8', got '%s'", areaConfig.Key)
	}
}

func TestConfigCacheRejectsInvalidAreaKey(t *testing.T) {
	tempDir := t.TempDir()

	err := os.WriteFile(filepath.Join(tempDir, "12345.yml"), []byte("settings:\n  enabled: true\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err == nil {
		t.Error("Expected error for non-postal-code filename")
	}
}

func TestConfigCacheEnabledConfigs(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string]string{
		"M5V3A8.yml": "settings:\n  enabled: true\n",
		"H2X1Y4.yml": "settings:\n  enabled: false\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	enabled := configCache.GetEnabledConfigs()
	if len(enabled) != 1 {
		t.Fatalf("Expected 1 enabled config, got %d", len(enabled))
	}
	if _, ok := enabled["M5V3A8"]; !ok {
		t.Error("Expected M5V3A8 to be enabled")
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := configCache.Run(); err != nil {
		t.Errorf("Expected missing directory to be tolerated, got %v", err)
	}
}
