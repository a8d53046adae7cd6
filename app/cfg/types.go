package cfg

type Cfg struct {
	// API configuration
	APIBaseURL string
	APIToken   string

	// Cache configuration
	CacheKind     string
	CachePath     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Application configuration
	FeedsDir       string
	PageSize       int
	MaxPosts       int
	MaxConcurrent  int
	MinIntervalMs  int
	MaxRetries     int
	MockPosts      int
	MockRateLimit  int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
