package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/lastbuyer/go/internal/game"
	"github.com/mcdev12/lastbuyer/go/internal/game/events"
	"github.com/mcdev12/lastbuyer/go/internal/security"
	"gopkg.in/yaml.v3"
)

const defaultDomain = "band4band.wtf"

type Config struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	Server struct {
		Domain         string   `yaml:"domain"`
		CertDir        string   `yaml:"cert_dir"`
		HTTPSAddr      string   `yaml:"https_addr"`
		RedirectAddr   string   `yaml:"redirect_addr"`
		DevAddr        string   `yaml:"dev_addr"`
		StaticDir      string   `yaml:"static_dir"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		TrustProxy     bool     `yaml:"trust_proxy"`
		GeoIPPath      string   `yaml:"geoip_path"`
	} `yaml:"server"`

	RateLimit security.RateLimitConfig `yaml:"rate_limit"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Game game.Rules `yaml:"game"`
}

func defaultConfig() *Config {
	var c Config
	c.Env = "production"
	c.LogLevel = "info"
	c.Server.Domain = defaultDomain
	c.Server.HTTPSAddr = ":443"
	c.Server.RedirectAddr = ":80"
	c.Server.DevAddr = ":3000"
	c.Server.StaticDir = "build/client"
	c.RateLimit = security.DefaultRateLimitConfig()
	c.NATS.SubjectPrefix = events.DefaultSubjectPrefix
	c.Game = game.DefaultRules()
	return &c
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// applyEnv lets environment variables override the file
func (c *Config) applyEnv() {
	c.Env = getEnv("APP_ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Server.Domain = getEnv("DOMAIN", c.Server.Domain)
	c.Server.CertDir = getEnv("CERT_DIR", c.Server.CertDir)
	c.Server.StaticDir = getEnv("STATIC_DIR", c.Server.StaticDir)
	c.Server.GeoIPPath = getEnv("GEOIP_DB_PATH", c.Server.GeoIPPath)
	c.Server.TrustProxy = getEnvAsBool("TRUST_PROXY", c.Server.TrustProxy)
	if port := os.Getenv("PORT"); port != "" {
		c.Server.DevAddr = ":" + port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.RateLimit.Limit = getEnvAsInt("RATE_LIMIT", c.RateLimit.Limit)
	c.RateLimit.Window = getEnvAsDuration("RATE_WINDOW", c.RateLimit.Window)
	if whitelist := os.Getenv("RATE_WHITELIST"); whitelist != "" {
		c.RateLimit.Whitelist = splitList(whitelist)
	}

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// CertDirectory defaults to the Let's Encrypt live directory for the domain
func (c *Config) CertDirectory() string {
	if c.Server.CertDir != "" {
		return c.Server.CertDir
	}
	return "/etc/letsencrypt/live/" + c.Server.Domain
}

// Origins defaults to the site's own https origin
func (c *Config) Origins() []string {
	if len(c.Server.AllowedOrigins) > 0 {
		return c.Server.AllowedOrigins
	}
	return []string{"https://" + c.Server.Domain}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
