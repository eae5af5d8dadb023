package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Matching      MatchingConfig      `mapstructure:"matching"`
	Notifier      NotifierConfig      `mapstructure:"notifier"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	TokenSecret   string        `mapstructure:"token_secret"`
	TokenDuration time.Duration `mapstructure:"token_duration"`
}

// MatchingConfig tunes the order matcher. AmountTolerance is the maximum
// absolute difference, in BDT, between a claimed amount and the expected
// order total for the two to be considered equal.
type MatchingConfig struct {
	AmountTolerance string `mapstructure:"amount_tolerance"`
}

type NotifierConfig struct {
	BridgeURL      string        `mapstructure:"bridge_url"`
	AdminPhone     string        `mapstructure:"admin_phone"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	MaxWorkers     int           `mapstructure:"max_workers"`
	JobQueueSize   int           `mapstructure:"job_queue_size"`
	WorkerPoolSize int           `mapstructure:"worker_pool_size"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- ENV FALLBACK -----------------

// LoadConfigFromEnv builds a Config from environment variables; used in
// container deployments where no config.yml is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("SERVER_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Security: SecurityConfig{
			TokenSecret:   getEnv("TOKEN_SECRET", ""),
			TokenDuration: getEnvAsDuration("TOKEN_DURATION", 720*time.Hour),
		},
		Matching: MatchingConfig{
			AmountTolerance: getEnv("MATCHING_AMOUNT_TOLERANCE", "1.00"),
		},
		Notifier: NotifierConfig{
			BridgeURL:      getEnv("NOTIFIER_BRIDGE_URL", "http://localhost:3001"),
			AdminPhone:     getEnv("NOTIFIER_ADMIN_PHONE", ""),
			SendTimeout:    getEnvAsDuration("NOTIFIER_SEND_TIMEOUT", 10*time.Second),
			MaxWorkers:     getEnvAsInt("NOTIFIER_MAX_WORKERS", 4),
			JobQueueSize:   getEnvAsInt("NOTIFIER_JOB_QUEUE_SIZE", 100),
			WorkerPoolSize: getEnvAsInt("NOTIFIER_WORKER_POOL_SIZE", 4),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Matching.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("matching config: %v", err))
	}

	if err := c.Notifier.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("notifier config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.TokenSecret) < 32 {
		return errors.New("token secret must be at least 32 characters")
	}
	return nil
}

func (c *MatchingConfig) Validate() error {
	tol, err := c.Tolerance()
	if err != nil {
		return fmt.Errorf("invalid amount_tolerance: %w", err)
	}
	if tol.IsNegative() {
		return errors.New("amount_tolerance cannot be negative")
	}
	return nil
}

func (c *MatchingConfig) Tolerance() (decimal.Decimal, error) {
	if c.AmountTolerance == "" {
		return decimal.NewFromInt(1), nil
	}
	return decimal.NewFromString(c.AmountTolerance)
}

func (c *NotifierConfig) Validate() error {
	if c.BridgeURL == "" {
		return errors.New("bridge_url is required")
	}
	if _, err := url.Parse(c.BridgeURL); err != nil {
		return fmt.Errorf("invalid bridge_url: %w", err)
	}
	return nil
}
