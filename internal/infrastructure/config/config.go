package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment       string                  `mapstructure:"environment"`
	LogLevel          string                  `mapstructure:"log_level"`
	Server            ServerConfig            `mapstructure:"server"`
	Database          DatabaseConfig          `mapstructure:"database"`
	Redis             RedisConfig             `mapstructure:"redis"`
	Allocation        AllocationConfig        `mapstructure:"allocation"`
	PortfolioProvider PortfolioProviderConfig `mapstructure:"portfolio_provider"`
	TradeExecution    TradeExecutionConfig    `mapstructure:"trade_execution"`
	Tracing           TracingConfig           `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string   `mapstructure:"url"`
	ReplicaURLs     []string `mapstructure:"replica_urls"`
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	Name            string   `mapstructure:"name"`
	User            string   `mapstructure:"user"`
	Password        string   `mapstructure:"password"`
	SSLMode         string   `mapstructure:"ssl_mode"`
	MaxOpenConns    int      `mapstructure:"max_open_conns"`
	MaxIdleConns    int      `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int      `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AllocationConfig tunes the ring engine and where rings are kept.
type AllocationConfig struct {
	Store                string  `mapstructure:"store"` // memory or postgres
	CacheEnabled         bool    `mapstructure:"cache_enabled"`
	CacheTTLSeconds      int     `mapstructure:"cache_ttl_seconds"`
	DriftMonitorSchedule string  `mapstructure:"drift_monitor_schedule"`
	DriftMonitorEnabled  bool    `mapstructure:"drift_monitor_enabled"`
	TransactionCostBps   float64 `mapstructure:"transaction_cost_bps"`
	MarginalTaxRate      float64 `mapstructure:"marginal_tax_rate"`
	MinTradeAmount       float64 `mapstructure:"min_trade_amount"`
	RiskFreeRate         float64 `mapstructure:"risk_free_rate"`
	HistoryLimit         int     `mapstructure:"history_limit"`
}

type PortfolioProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

type TradeExecutionConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// UsePostgres reports whether rings are persisted in PostgreSQL.
func (c *Config) UsePostgres() bool {
	return strings.EqualFold(c.Allocation.Store, "postgres")
}

// UseRedis reports whether a Redis connection is wanted, either for the ring
// cache or for shared rate limiting.
func (c *Config) UseRedis() bool {
	return c.Allocation.CacheEnabled || c.Redis.URL != ""
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Override specific environment variables
	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	// Validate required fields
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.rate_limit_per_min", 100)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "stackmotive")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// Allocation defaults
	viper.SetDefault("allocation.store", "memory")
	viper.SetDefault("allocation.cache_enabled", false)
	viper.SetDefault("allocation.cache_ttl_seconds", 300)
	viper.SetDefault("allocation.drift_monitor_enabled", true)
	viper.SetDefault("allocation.drift_monitor_schedule", "0 */15 * * * *") // every 15 minutes
	viper.SetDefault("allocation.transaction_cost_bps", 10.0)
	viper.SetDefault("allocation.marginal_tax_rate", 0.325)
	viper.SetDefault("allocation.min_trade_amount", 100.0)
	viper.SetDefault("allocation.risk_free_rate", 4.0)
	viper.SetDefault("allocation.history_limit", 90)

	// Collaborator defaults
	viper.SetDefault("portfolio_provider.base_url", "")
	viper.SetDefault("portfolio_provider.timeout_seconds", 10)
	viper.SetDefault("portfolio_provider.max_retries", 3)
	viper.SetDefault("trade_execution.base_url", "")
	viper.SetDefault("trade_execution.timeout_seconds", 30)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4317")
	viper.SetDefault("tracing.sample_ratio", 1.0)
}

func overrideFromEnv() {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		var list []string
		for _, part := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				list = append(list, trimmed)
			}
		}
		if len(list) > 0 {
			viper.Set("server.allowed_origins", list)
		}
	}

	// Database
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	// Redis
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		viper.Set("redis.url", redisURL)
	}

	// Allocation
	if store := os.Getenv("ALLOCATION_STORE"); store != "" {
		viper.Set("allocation.store", store)
	}
	if schedule := os.Getenv("DRIFT_MONITOR_SCHEDULE"); schedule != "" {
		viper.Set("allocation.drift_monitor_schedule", schedule)
	}

	// Collaborators
	if providerURL := os.Getenv("PORTFOLIO_PROVIDER_URL"); providerURL != "" {
		viper.Set("portfolio_provider.base_url", providerURL)
	}
	if providerKey := os.Getenv("PORTFOLIO_PROVIDER_API_KEY"); providerKey != "" {
		viper.Set("portfolio_provider.api_key", providerKey)
	}
	if tradeURL := os.Getenv("TRADE_EXECUTION_URL"); tradeURL != "" {
		viper.Set("trade_execution.base_url", tradeURL)
	}
	if tradeKey := os.Getenv("TRADE_EXECUTION_API_KEY"); tradeKey != "" {
		viper.Set("trade_execution.api_key", tradeKey)
	}

	// Tracing
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		viper.Set("tracing.endpoint", endpoint)
		viper.Set("tracing.enabled", true)
	}
}

func validate(config *Config) error {
	switch strings.ToLower(config.Allocation.Store) {
	case "memory", "postgres":
	default:
		return fmt.Errorf("allocation store must be memory or postgres, got %q", config.Allocation.Store)
	}

	if config.UsePostgres() && config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	if config.Allocation.TransactionCostBps < 0 {
		return fmt.Errorf("allocation transaction cost must not be negative")
	}

	if config.Allocation.MinTradeAmount < 0 {
		return fmt.Errorf("allocation minimum trade amount must not be negative")
	}

	if config.Allocation.MarginalTaxRate <= 0 || config.Allocation.MarginalTaxRate > 1 {
		return fmt.Errorf("allocation marginal tax rate must be in (0, 1]")
	}

	if config.Allocation.HistoryLimit <= 0 {
		return fmt.Errorf("allocation history limit must be positive")
	}

	return nil
}
