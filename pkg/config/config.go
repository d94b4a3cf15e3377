package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"FinRank/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	MarketData struct {
		Provider     string `yaml:"provider" default:"http"` // alpaca, http or clickhouse
		SymbolSuffix string `yaml:"symbol_suffix"`
		ArchiveBars  bool   `yaml:"archive_bars"`
		Alpaca       struct {
			APIKey            string  `yaml:"api_key"`
			APISecret         string  `yaml:"api_secret"`
			BaseURL           string  `yaml:"base_url"`
			Feed              string  `yaml:"feed" default:"iex"`
			RequestsPerSecond float64 `yaml:"requests_per_second" default:"3"`
			Burst             int     `yaml:"burst" default:"1"`
		} `yaml:"alpaca"`
		HTTP struct {
			BaseURL       string        `yaml:"base_url"`
			Timeout       time.Duration `yaml:"timeout" default:"10s"`
			RetryAttempts int           `yaml:"retry_attempts" default:"3"`
			RetryBackoff  time.Duration `yaml:"retry_backoff" default:"500ms"`
		} `yaml:"http"`
		Breaker struct {
			Enabled          bool          `yaml:"enabled"`
			MaxRequests      uint32        `yaml:"max_requests" default:"1"`
			Interval         time.Duration `yaml:"interval" default:"60s"`
			Timeout          time.Duration `yaml:"timeout" default:"30s"`
			FailureThreshold uint32        `yaml:"failure_threshold" default:"5"`
		} `yaml:"breaker"`
	} `yaml:"market_data"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finrank"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Postgres struct {
		Enabled      bool   `yaml:"enabled"`
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns" default:"5"`
	} `yaml:"postgres"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Recommendations string `yaml:"recommendations" default:"recommendations.generated"`
			SegmentTrained  string `yaml:"segment_trained" default:"recommender.segment-trained"`
			RetrainCommands string `yaml:"retrain_commands" default:"recommender.retrain"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"finrank-retrain"`
			Workers    int           `yaml:"workers" default:"1"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Cache struct {
		Backend        string        `yaml:"backend" default:"memory"` // memory, redis or layered
		MemoryCapacity int           `yaml:"memory_capacity" default:"1024"`
		L1TTL          time.Duration `yaml:"l1_ttl" default:"1m"` // layered only
		Redis          struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Model struct {
		ArtifactDir     string `yaml:"artifact_dir" default:"models"`
		Trees           int    `yaml:"trees" default:"100"`
		Seed            int64  `yaml:"seed" default:"42"`
		MaxDepth        int    `yaml:"max_depth"`
		MinSamplesLeaf  int    `yaml:"min_samples_leaf" default:"1"`
		Workers         int    `yaml:"workers" default:"4"`
		TrainingPeriod  string `yaml:"training_period" default:"1y"`
		KeepGenerations int    `yaml:"keep_generations" default:"2"`
	} `yaml:"model"`
	Universe struct {
		CacheTTL       time.Duration       `yaml:"cache_ttl" default:"24h"`
		VerifyPeriod   string              `yaml:"verify_period" default:"1mo"`
		MinHistoryDays int                 `yaml:"min_history_days" default:"20"`
		MinSymbols     int                 `yaml:"min_symbols" default:"5"`
		Segments       map[string][]string `yaml:"segments"`
	} `yaml:"universe"`
	Retrain struct {
		Enabled   bool          `yaml:"enabled"`
		At        string        `yaml:"at" default:"00:00"`
		OnStartup bool          `yaml:"on_startup"`
		LockTTL   time.Duration `yaml:"lock_ttl" default:"30m"`
		Timeout   time.Duration `yaml:"timeout" default:"30m"`
	} `yaml:"retrain"`
	Scoring struct {
		TopN int `yaml:"top_n" default:"5"`
	} `yaml:"scoring"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, nil)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, os.Getenv)
}

// Parse decodes YAML, applies env overrides (when getenv is set), defaults and validation.
func Parse(b []byte, getenv func(string) string) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if getenv != nil {
		c.applyEnv(getenv)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := getenv("MARKET_DATA_PROVIDER"); v != "" {
		c.MarketData.Provider = v
	}
	if v := getenv("ALPACA_API_KEY"); v != "" {
		c.MarketData.Alpaca.APIKey = v
	}
	if v := getenv("ALPACA_API_SECRET"); v != "" {
		c.MarketData.Alpaca.APISecret = v
	}
	if v := getenv("BARS_SERVICE_URL"); v != "" {
		c.MarketData.HTTP.BaseURL = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("MODEL_DIR"); v != "" {
		c.Model.ArtifactDir = v
	}
	c.Server.Port = util.ParseIntDefault(getenv("SERVER_PORT"), c.Server.Port)
	c.Kafka.Enabled = util.ParseBoolDefault(getenv("KAFKA_ENABLED"), c.Kafka.Enabled)
	c.Retrain.Enabled = util.ParseBoolDefault(getenv("RETRAIN_ENABLED"), c.Retrain.Enabled)
	c.Retrain.OnStartup = util.ParseBoolDefault(getenv("RETRAIN_ON_STARTUP"), c.Retrain.OnStartup)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.MarketData.Provider {
	case "alpaca":
		if c.MarketData.Alpaca.APIKey == "" || c.MarketData.Alpaca.APISecret == "" {
			return fmt.Errorf("market_data.alpaca api_key and api_secret are required")
		}
		if c.MarketData.Alpaca.RequestsPerSecond <= 0 {
			return fmt.Errorf("market_data.alpaca.requests_per_second must be positive")
		}
	case "http":
		if c.MarketData.HTTP.BaseURL == "" {
			return fmt.Errorf("market_data.http.base_url is required")
		}
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("market_data.provider 'clickhouse' requires clickhouse.enabled")
		}
	default:
		return fmt.Errorf("market_data.provider must be 'alpaca', 'http' or 'clickhouse', got '%s'", c.MarketData.Provider)
	}
	if c.MarketData.ArchiveBars && !c.ClickHouse.Enabled {
		return fmt.Errorf("market_data.archive_bars requires clickhouse.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required when postgres is enabled")
	}
	switch c.Cache.Backend {
	case "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.backend must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Backend)
	}
	if c.Model.Trees <= 0 {
		return fmt.Errorf("model.trees must be positive")
	}
	if _, err := util.ParsePeriod(c.Model.TrainingPeriod); err != nil {
		return fmt.Errorf("model.training_period: %w", err)
	}
	if _, err := util.ParsePeriod(c.Universe.VerifyPeriod); err != nil {
		return fmt.Errorf("universe.verify_period: %w", err)
	}
	if c.Universe.MinSymbols <= 0 {
		return fmt.Errorf("universe.min_symbols must be positive")
	}
	if _, _, err := util.ParseClock(c.Retrain.At); err != nil {
		return fmt.Errorf("retrain.at: %w", err)
	}
	if c.Scoring.TopN <= 0 {
		return fmt.Errorf("scoring.top_n must be positive")
	}
	return nil
}
