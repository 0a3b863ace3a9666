package models

// MConfig Structure
type MConfig struct {
	Name            string                 `yaml:"name"`
	Logging         MLoggingConfig         `yaml:"logging"`
	Session         MSessionConfig         `yaml:"session"`
	Network         MNetworkConfig         `yaml:"network"`
	Streamer        MStreamerConfig        `yaml:"streamer"`
	Backoff         MBackoffConfig         `yaml:"backoff"`
	Dispatcher      MDispatcherConfig      `yaml:"dispatcher"`
	AccountStreamer MAccountStreamerConfig `yaml:"account_streamer"`
	Feed            MFeedConfig            `yaml:"feed"`
	Storage         MStorageConfig         `yaml:"storage"`
	Publish         MPublishConfig         `yaml:"publish"`
	Server          MServerConfig          `yaml:"server"`
	Metrics         MMetricsConfig         `yaml:"metrics"`
	WindowsAgg      []string               `yaml:"windows_aggregation"`
}

type MLoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MSessionConfig struct {
	Login         string `yaml:"login"`
	Password      string `yaml:"password"`
	RememberMe    bool   `yaml:"remember_me"`
	RememberToken string `yaml:"remember_token"`
	URLOverride   string `yaml:"url_override"`
}

type MNetworkConfig struct {
	RequestTimeout int `yaml:"request_timeout"` // seconds
	MaxRetries     int `yaml:"max_retries"`
}

type MStreamerConfig struct {
	Environment             string  `yaml:"environment"` // "prod" or "cert"
	URLOverride             string  `yaml:"url_override"`
	KeepaliveInterval       int     `yaml:"keepalive_interval"` // seconds
	KeepaliveTimeout        int     `yaml:"keepalive_timeout"`  // seconds
	AcceptAggregationPeriod float64 `yaml:"accept_aggregation_period"`
}

type MBackoffConfig struct {
	BaseDelay      float64 `yaml:"base_delay"` // seconds
	MaxDelay       float64 `yaml:"max_delay"`  // seconds
	MaxRetries     int     `yaml:"max_retries"`
	JitterFraction float64 `yaml:"jitter_fraction"`
	ResetAfter     float64 `yaml:"reset_after"` // seconds of sustained Ready before reset
}

type MDispatcherConfig struct {
	QueueSize int `yaml:"queue_size"`
}

type MAccountStreamerConfig struct {
	Enabled           bool     `yaml:"enabled"`
	URLOverride       string   `yaml:"url_override"`
	HeartbeatInterval int      `yaml:"heartbeat_interval"` // seconds
	Accounts          []string `yaml:"accounts"`
	Watchlists        bool     `yaml:"watchlists"`
	QuoteAlerts       bool     `yaml:"quote_alerts"`
	UserMessages      bool     `yaml:"user_messages"`
}

type MFeedConfig struct {
	MarketHoursOnly bool                `yaml:"market_hours_only"`
	Exchange        string              `yaml:"exchange"` // calendar name, e.g. "NYSE"
	Sources         []MFeedSourceConfig `yaml:"sources"`
}

type MFeedSourceConfig struct {
	Name    string               `yaml:"name"`
	Kinds   []string             `yaml:"kinds"`
	Symbols []string             `yaml:"symbols"`
	Candles []MCandleSubscConfig `yaml:"candles"`
}

type MCandleSubscConfig struct {
	Symbol        string `yaml:"symbol"`
	Interval      string `yaml:"interval"` // e.g. "5m", "1h", "1d"
	ExtendedHours bool   `yaml:"extended_hours"`
	LookbackHours int    `yaml:"lookback_hours"`
}

type MStorageConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	FlushInterval      int    `yaml:"flush_interval"` // seconds
	RetentionDays      int    `yaml:"retention_days"`
}

type MPublishConfig struct {
	Enabled       bool   `yaml:"enabled"`
	NatsURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type MServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type MMetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}
