package config

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env        string `mapstructure:"ENV"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	ServerPort string `mapstructure:"SERVER_PORT"`
	DBURL      string `mapstructure:"DB_URL"`
	SecretKey  string `mapstructure:"SECRET_KEY"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	DefaultCurrency   string        `mapstructure:"DEFAULT_CURRENCY"`
	PayoutMethod      string        `mapstructure:"PAYOUT_METHOD"`
	SweepSchedule     string        `mapstructure:"SWEEP_SCHEDULE"`
	WorkerConcurrency int           `mapstructure:"WORKER_CONCURRENCY"`
	ShutdownTimeout   time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort int    `mapstructure:"SMTP_PORT"`
	SMTPUser string `mapstructure:"SMTP_USER"`
	SMTPPass string `mapstructure:"SMTP_PASS"`

	ExpoAccessToken string `mapstructure:"EXPO_ACCESS_TOKEN"`
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

func defaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("DB_URL", "")
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DEFAULT_CURRENCY", "KES")
	v.SetDefault("PAYOUT_METHOD", "MOBILE_MONEY")
	v.SetDefault("SWEEP_SCHEDULE", "@every 5m")
	v.SetDefault("WORKER_CONCURRENCY", 5)
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("EXPO_ACCESS_TOKEN", "")
}

// Load reads .env (when present), an optional config.yaml and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables only")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.DefaultCurrency = strings.ToUpper(cfg.DefaultCurrency)
	return &cfg, nil
}

// Validate checks the keys a command needs. The API server needs the JWT
// secret on top of the database.
func (c *Config) Validate(needSecret bool) error {
	var problems []string
	if c.DBURL == "" {
		problems = append(problems, "DB_URL is required")
	}
	if needSecret && c.SecretKey == "" {
		problems = append(problems, "SECRET_KEY is required")
	}
	if !currencyPattern.MatchString(c.DefaultCurrency) {
		problems = append(problems, fmt.Sprintf("DEFAULT_CURRENCY %q is not a 3-letter code", c.DefaultCurrency))
	}
	if c.WorkerConcurrency < 1 {
		problems = append(problems, "WORKER_CONCURRENCY must be at least 1")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUser != ""
}
