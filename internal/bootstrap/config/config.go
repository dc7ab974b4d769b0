package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"franchise-bootstrap/internal/bootstrap/domain/model"

	"github.com/caarlos0/env/v6"
)

// MongoConfig holds the endpoint and administrative auth context of the server.
type MongoConfig struct {
	URI            string        `env:"MONGODB_URI"`
	ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT"`
	AppName        string        `env:"MONGODB_APP_NAME"`
}

// UserConfig holds the application credential to provision.
type UserConfig struct {
	Name         string `env:"FRANCHISE_DB_USER"`
	Password     string `env:"FRANCHISE_DB_PASSWORD"`
	PasswordFile string `env:"FRANCHISE_DB_PASSWORD_FILE"`
	Role         string `env:"FRANCHISE_DB_ROLE"`
}

// RedisConfig holds the optional Redis connection used to publish completion events.
type RedisConfig struct {
	Enabled   bool   `env:"REDIS_ENABLED"`
	Host      string `env:"REDIS_HOST"`
	Port      string `env:"REDIS_PORT"`
	Password  string `env:"REDIS_PASSWORD"`
	Database  int    `env:"REDIS_DB"`
	Stream    string `env:"REDIS_STREAM"`
	EnableTLS bool   `env:"REDIS_TLS"`
}

// GetAddr returns host:port
func (r RedisConfig) GetAddr() string {
	return net.JoinHostPort(r.Host, r.Port)
}

// Config holds all configuration for a bootstrap run.
type Config struct {
	Mongo MongoConfig
	User  UserConfig
	Redis RedisConfig

	DatabaseName string   `env:"FRANCHISE_DB_NAME"`
	Collections  []string `env:"FRANCHISE_DB_COLLECTIONS" envSeparator:","`

	// TolerateExistingCollections treats "collection already exists" as success.
	TolerateExistingCollections bool          `env:"BOOTSTRAP_TOLERATE_EXISTING_COLLECTIONS"`
	Verify                      bool          `env:"BOOTSTRAP_VERIFY"`
	Timeout                     time.Duration `env:"BOOTSTRAP_TIMEOUT"`
}

// Default returns the configuration of the stock deployment.
func Default() *Config {
	return &Config{
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			ConnectTimeout: 30 * time.Second,
			AppName:        "franchise-bootstrap",
		},
		User: UserConfig{
			Name:     model.DefaultUser,
			Password: model.DefaultPassword,
			Role:     model.RoleReadWrite,
		},
		Redis: RedisConfig{
			Host:   "localhost",
			Port:   "6379",
			Stream: "bootstrap:events",
		},
		DatabaseName:                model.DefaultDatabase,
		Collections:                 model.DefaultCollections(),
		TolerateExistingCollections: true,
		Timeout:                     2 * time.Minute,
	}
}

// LoadConfig starts from Default and overrides every value whose environment
// variable is set.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load configuration from environment: " + err.Error())
	}
	if err := env.Parse(&cfg.Mongo); err != nil {
		return nil, errors.New("failed to load mongodb configuration from environment: " + err.Error())
	}
	if err := env.Parse(&cfg.User); err != nil {
		return nil, errors.New("failed to load user configuration from environment: " + err.Error())
	}
	if err := env.Parse(&cfg.Redis); err != nil {
		return nil, errors.New("failed to load redis configuration from environment: " + err.Error())
	}

	if err := cfg.resolvePassword(); err != nil {
		return nil, err
	}

	cfg.Collections = normalizeCollections(cfg.Collections)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolvePassword reads the password from the secrets file when one is configured.
func (c *Config) resolvePassword() error {
	if c.User.PasswordFile == "" {
		return nil
	}
	raw, err := os.ReadFile(c.User.PasswordFile)
	if err != nil {
		return fmt.Errorf("failed to read password file %s: %w", c.User.PasswordFile, err)
	}
	c.User.Password = strings.TrimRight(string(raw), "\r\n")
	return nil
}

// Validate checks the values the bootstrap cannot run without.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("mongodb_uri is required")
	}
	if c.Mongo.ConnectTimeout <= 0 {
		return errors.New("mongodb_connect_timeout must be positive")
	}
	if c.DatabaseName == "" {
		return errors.New("franchise_db_name is required")
	}
	if c.User.Name == "" {
		return errors.New("franchise_db_user is required")
	}
	if c.User.Password == "" {
		return errors.New("franchise_db_password is required")
	}
	if c.User.Role == "" {
		return errors.New("franchise_db_role is required")
	}
	if len(c.Collections) == 0 {
		return errors.New("franchise_db_collections must name at least one collection")
	}
	if c.Timeout <= 0 {
		return errors.New("bootstrap_timeout must be positive")
	}
	if c.Redis.Enabled && c.Redis.Stream == "" {
		return errors.New("redis_stream is required when redis is enabled")
	}
	return nil
}

// normalizeCollections trims names and drops empty entries from the list.
func normalizeCollections(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
