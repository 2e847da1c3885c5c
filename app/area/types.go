package area

// Configuration types

type Config struct {
	Key      string         // Derived from filename (without .yml extension)
	Label    string         `yaml:"label"`
	Settings ConfigSettings `yaml:"settings"`
	Queries  []string       `yaml:"queries"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxResults      int  `yaml:"max_results"`      // per query
}
