package area

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/flyerflutter/dealcomb/app/flipp"
)

// defaultQueries is the sweep used when an area file does not list its
// own. It covers the staples most flyers rotate weekly.
var defaultQueries = []string{
	"milk", "bread", "eggs", "cheese", "chicken", "beef",
	"apples", "bananas", "rice", "pasta", "coffee", "yogurt",
}

// DefaultConfig is used for areas requested on demand that have no
// file under the areas directory.
func DefaultConfig(key string) *Config {
	return &Config{
		Key: key,
		Settings: ConfigSettings{
			Enabled:         true,
			RefreshInterval: 86400,
			MaxResults:      100,
		},
		Queries: append([]string(nil), defaultQueries...),
	}
}

type ConfigCache struct {
	areasDir string
	cache    map[string]*Config
	mu       sync.RWMutex
}

func NewConfigCache(areasDir string) *ConfigCache {
	return &ConfigCache{
		areasDir: areasDir,
		cache:    make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.areasDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.areasDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		// Derive area key from filename (remove .yml extension)
		fileName := filepath.Base(file)
		areaKey := fileName[:len(fileName)-4]

		config, err := cc.LoadConfig(areaKey)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Area configuration loaded", "area", config.Key, "enabled", config.Settings.Enabled, "queries", len(config.Queries))
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(areaKey string) (*Config, error) {
	configFile := cc.getConfigFilePath(areaKey)
	areaConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	normalized, err := flipp.NormalizeAreaKey(areaKey)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}
	areaConfig.Key = normalized

	if err := cc.validateConfig(areaConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[areaConfig.Key] = areaConfig

	return areaConfig, nil
}

func (cc *ConfigCache) GetConfig(areaKey string) (*Config, error) {
	key, err := flipp.NormalizeAreaKey(areaKey)
	if err != nil {
		return nil, err
	}

	cc.mu.RLock()
	defer cc.mu.RUnlock()

	areaConfig, ok := cc.cache[key]
	if !ok {
		return nil, fmt.Errorf("area config with key '%s' not found", key)
	}
	return areaConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var areaConfig Config
	if err := yaml.Unmarshal(data, &areaConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if areaConfig.Settings.RefreshInterval == 0 {
		areaConfig.Settings.RefreshInterval = 86400
	}
	if areaConfig.Settings.MaxResults == 0 {
		areaConfig.Settings.MaxResults = 100
	}
	if len(areaConfig.Queries) == 0 {
		areaConfig.Queries = append([]string(nil), defaultQueries...)
	}

	return &areaConfig, nil
}

func (cc *ConfigCache) validateConfig(areaConfig *Config) error {
	if areaConfig == nil {
		return fmt.Errorf("areaConfig is nil")
	}

	nonNegativeFields := map[string]int{
		"refresh interval": areaConfig.Settings.RefreshInterval,
		"max results":      areaConfig.Settings.MaxResults,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, query := range areaConfig.Queries {
		if query == "" {
			return fmt.Errorf("query at index %d must not be empty", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(areaKey string) string {
	return filepath.Join(cc.areasDir, areaKey+".yml")
}
