package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port" split_words:"true"`
		AllowedOrigins []string `yaml:"allowedOrigins" split_words:"true"`
		UploadsDir     string   `yaml:"uploadsDir" split_words:"true"` // used when minio.endpoint is empty
	} `yaml:"server" envconfig:"SERVER"`

	Database struct {
		Driver   string `yaml:"driver" split_words:"true"` // mysql | postgres | memory
		Host     string `yaml:"host" split_words:"true"`
		Port     int    `yaml:"port" split_words:"true"`
		User     string `yaml:"user" split_words:"true"`
		Password string `yaml:"password" split_words:"true"`
		Name     string `yaml:"name" split_words:"true"`
		SSLMode  string `yaml:"sslMode" split_words:"true"`
		SeedFile string `yaml:"seedFile" split_words:"true"` // memory driver only
	} `yaml:"database" envconfig:"DB"`

	Minio struct {
		Endpoint   string `yaml:"endpoint" split_words:"true"`
		AccessKey  string `yaml:"accessKey" split_words:"true"`
		SecretKey  string `yaml:"secretKey" split_words:"true"`
		BucketName string `yaml:"bucketName" split_words:"true"`
		Region     string `yaml:"region" split_words:"true"`
		UseSSL     bool   `yaml:"useSSL" split_words:"true"`
		PublicURL  string `yaml:"publicURL" split_words:"true"`
	} `yaml:"minio" envconfig:"MINIO"`

	OpenAI struct {
		APIKey   string        `yaml:"apiKey" split_words:"true"`
		Model    string        `yaml:"model" split_words:"true"`
		BaseURL  string        `yaml:"baseURL" split_words:"true"`
		Timeout  time.Duration `yaml:"timeout" split_words:"true"`
		CacheTTL time.Duration `yaml:"cacheTTL" split_words:"true"`
	} `yaml:"openai" envconfig:"OPENAI"`

	Redis struct {
		URL     string `yaml:"url" split_words:"true"`
		Channel string `yaml:"channel" split_words:"true"`
	} `yaml:"redis" envconfig:"REDIS"`

	Auth struct {
		JWTSecret string        `yaml:"jwtSecret" split_words:"true"`
		TokenTTL  time.Duration `yaml:"tokenTTL" split_words:"true"`
		// seed account for the memory driver
		AdminEmail    string `yaml:"adminEmail" split_words:"true"`
		AdminPassword string `yaml:"adminPassword" split_words:"true"`
	} `yaml:"auth" envconfig:"AUTH"`

	Review struct {
		SessionTTL        time.Duration `yaml:"sessionTTL" split_words:"true"`
		GenerationTimeout time.Duration `yaml:"generationTimeout" split_words:"true"`
	} `yaml:"review" envconfig:"REVIEW"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requestsPerSecond" split_words:"true"`
		Burst             int     `yaml:"burst" split_words:"true"`
	} `yaml:"rateLimit" envconfig:"RATE_LIMIT"`

	Log struct {
		Level  string `yaml:"level" split_words:"true"`
		Format string `yaml:"format" split_words:"true"`
	} `yaml:"log" envconfig:"LOG"`
}

// EnvPrefix for environment overrides, e.g. SKINREVIEW_DB_HOST.
const EnvPrefix = "SKINREVIEW"

// Load baca file config.yaml, then apply environment overrides and defaults.
// A missing file is fine when everything comes from the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.UploadsDir == "" {
		c.Server.UploadsDir = "uploads"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Port == 0 {
		if c.Database.Driver == "postgres" {
			c.Database.Port = 5432
		} else {
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "scan-uploads"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 60 * time.Second
	}
	if c.OpenAI.CacheTTL == 0 {
		c.OpenAI.CacheTTL = 30 * time.Minute
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "scan.verified"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 12 * time.Hour
	}
	if c.Review.SessionTTL == 0 {
		c.Review.SessionTTL = 2 * time.Hour
	}
	if c.Review.GenerationTimeout == 0 {
		c.Review.GenerationTimeout = 90 * time.Second
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is required")
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
