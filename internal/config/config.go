package config

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Site      SiteConfig      `mapstructure:"site"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Google    GoogleConfig    `mapstructure:"google"`
	IndexNow  IndexNowConfig  `mapstructure:"indexnow"`
	Submitter SubmitterConfig `mapstructure:"submitter"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// SiteConfig identifies the site whose pages get submitted. SitemapPath
// points at the generated sitemap index on local disk.
type SiteConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	SitemapPath string `mapstructure:"sitemap_path"`
}

type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// GoogleConfig configures the bulk per-URL indexing adapter. Credentials can
// come from a service-account key file or directly from the environment;
// both empty leaves the adapter disabled.
type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	ClientEmail     string `mapstructure:"client_email"`
	PrivateKey      string `mapstructure:"private_key"`
	DailyLimit      int    `mapstructure:"daily_limit"`
	BatchSize       int    `mapstructure:"batch_size"`
}

// IndexNowConfig configures the multi-URL push adapter. An empty key leaves
// the adapter disabled.
type IndexNowConfig struct {
	Key         string `mapstructure:"key"`
	KeyLocation string `mapstructure:"key_location"`
	Endpoint    string `mapstructure:"endpoint"`
}

type SubmitterConfig struct {
	PerURLDelayMs int `mapstructure:"per_url_delay_ms"`
	BatchDelayMs  int `mapstructure:"batch_delay_ms"`
}

// ScheduleConfig drives the in-process cron trigger. Empty Cron disables
// scheduled runs (the HTTP trigger still works).
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

type Manager interface {
	Load(configPath string) (*Config, error)
	Reload() error
	GetConfig() *Config
}
