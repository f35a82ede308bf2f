package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all postbase configuration.
type Config struct {
	Port    string `yaml:"port"`
	SiteURL string `yaml:"site_url"`
	GinMode string `yaml:"gin_mode"`

	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Redis    RedisConfig    `yaml:"redis"`
	GitHub   GitHubConfig   `yaml:"github"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Posts    PostsConfig    `yaml:"posts"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type SessionConfig struct {
	Name   string `yaml:"name"`
	Secret string `yaml:"secret"`
	MaxAge int    `yaml:"max_age"` // seconds
}

// RedisConfig 为空地址时不启用跨实例的 revalidate 广播
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type PostsConfig struct {
	// 免费用户最多可拥有的文章数
	FreePlanLimit int `yaml:"free_plan_limit"`
	// 允许客户端请求 revalidate 的路径前缀
	RevalidatePrefixes []string `yaml:"revalidate_prefixes"`
}

type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Port:    "8080",
		SiteURL: "http://localhost:8080",
		GinMode: "release",
		Database: DatabaseConfig{
			URL:          "host=localhost user=postgres password=postgres dbname=postbase port=5432 sslmode=disable TimeZone=UTC",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Session: SessionConfig{
			Name:   "postbase_session",
			Secret: "secret_key_change_me",
			MaxAge: 7 * 24 * 3600,
		},
		Redis: RedisConfig{
			Channel: "postbase:revalidate",
		},
		Posts: PostsConfig{
			FreePlanLimit:      3,
			RevalidatePrefixes: []string{"/"},
		},
		Cache: CacheConfig{
			Size: 500,
			TTL:  5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the optional YAML file at path and then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Port, "PORT")
	setString(&c.SiteURL, "SITE_URL")
	setString(&c.GinMode, "GIN_MODE")

	setString(&c.Database.URL, "DATABASE_URL")

	setString(&c.Session.Secret, "SESSION_SECRET")
	setInt(&c.Session.MaxAge, "SESSION_MAX_AGE")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")

	setString(&c.GitHub.ClientID, "GITHUB_CLIENT_ID")
	setString(&c.GitHub.ClientSecret, "GITHUB_CLIENT_SECRET")

	// 与旧版邮件服务的环境变量保持一致
	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.Port, "SMTP_PORT")
	setString(&c.SMTP.User, "SMTP_USER")
	setString(&c.SMTP.Password, "SMTP_PASS")
	setString(&c.SMTP.From, "SMTP_FROM")

	setInt(&c.Posts.FreePlanLimit, "FREE_PLAN_POST_LIMIT")
	if v := os.Getenv("REVALIDATE_PREFIXES"); v != "" {
		var prefixes []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				prefixes = append(prefixes, p)
			}
		}
		c.Posts.RevalidatePrefixes = prefixes
	}

	setString(&c.Logging.Level, "LOG_LEVEL")
}

// Validate checks values that would otherwise fail deep inside the server.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: port is required")
	}
	if c.Database.URL == "" {
		return errors.New("config: database url is required")
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("config: session max_age must be positive, got %d", c.Session.MaxAge)
	}
	if c.Posts.FreePlanLimit < 0 {
		return fmt.Errorf("config: free_plan_limit must not be negative, got %d", c.Posts.FreePlanLimit)
	}
	for _, p := range c.Posts.RevalidatePrefixes {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("config: revalidate prefix %q must start with /", p)
		}
	}
	return nil
}

// SMTPEnabled reports whether every SMTP setting is present.
func (c *Config) SMTPEnabled() bool {
	s := c.SMTP
	return s.Host != "" && s.Port != "" && s.User != "" && s.Password != "" && s.From != ""
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHub.ClientID != "" && c.GitHub.ClientSecret != ""
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
