// Package config builds the runtime configuration from defaults, an optional
// YAML file, the environment (including a .env file) and command-line flags,
// in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Role-mismatch policies for page routes.
const (
	PolicyRedirect = "redirect"
	PolicyDeny     = "deny"
)

// Config holds runtime settings for the Trashure server.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	AuthSecret   string        `yaml:"auth_secret"`
	TokenTTL     time.Duration `yaml:"-"`
	CookieSecure bool          `yaml:"cookie_secure"`
	BcryptCost   int           `yaml:"bcrypt_cost"`

	StoreDriver string `yaml:"store_driver"`
	MongoURI    string `yaml:"mongo_uri"`
	MongoDB     string `yaml:"mongo_db"`

	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`

	BlobDriver  string `yaml:"blob_driver"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3PublicURL string `yaml:"s3_public_url"`

	RoleMismatchPolicy string   `yaml:"role_mismatch_policy"`
	CORSOrigins        []string `yaml:"cors_origins"`
	LoginRatePerMin    int      `yaml:"login_rate_per_min"`
	LoginBurst         int      `yaml:"login_burst"`
	TimeZone           string   `yaml:"time_zone"`
	StaticDir          string   `yaml:"static_dir"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// LoadDefaults populates Config with development defaults.
// The auth secret default is insecure and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.AuthSecret = "dev-insecure-secret-change-me"
	c.TokenTTL = 7 * 24 * time.Hour
	c.BcryptCost = 10
	c.StoreDriver = "mongo"
	c.MongoURI = "mongodb://localhost:27017"
	c.MongoDB = "trashure"
	c.BlobDriver = "memory"
	c.S3Region = "us-east-1"
	c.RoleMismatchPolicy = PolicyRedirect
	c.CORSOrigins = []string{"http://localhost:3000"}
	c.LoginRatePerMin = 10
	c.LoginBurst = 5
	c.TimeZone = "Local"
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AuthSecret) == "" {
		return fmt.Errorf("auth secret must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL)
	}
	switch c.StoreDriver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	switch c.BlobDriver {
	case "memory":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("s3 blob driver requires a bucket")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.BlobDriver)
	}
	switch c.RoleMismatchPolicy {
	case PolicyRedirect, PolicyDeny:
	default:
		return fmt.Errorf("unknown role mismatch policy %q", c.RoleMismatchPolicy)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves TimeZone for date-bucket filtering.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Load builds a Config by applying defaults, then the YAML file, then the
// environment and finally the given command-line args.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	fl, err := parseFlags(args)
	if err != nil {
		return nil, err
	}

	path := fl.configPath
	if path == "" {
		path = lookupEnv("TRASHURE_CONFIG")
	}
	if path != "" {
		if err := loadYAML(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := loadEnv(cfg); err != nil {
		return nil, err
	}
	fl.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
