package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	AreasDir          string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Catalog source configuration
	SourceBaseURL    string
	SourceRateLimit  float64
	SourceTimeout    int
	SourceMaxRetries int

	// Freshness and matching
	FreshnessWindow int
	FailureCooldown int
	MatchThreshold  float64

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
