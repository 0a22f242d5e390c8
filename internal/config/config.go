package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config reads application settings from the environment, with an
// optional .env file loaded first. Sensitive values are masked when the
// configuration is logged.
type Config struct {
	log *logrus.Logger
}

var defaults = map[string]string{
	"POLL_INTERVAL":        "5m",
	"LOG_LEVEL":            "info",
	"OPENAI_MODEL":         "gpt-4o",
	"OPENAI_TEMPERATURE":   "0.1",
	"CONFIDENCE_THRESHOLD": "0.8",
	"BOOKS_API_REGION":     "com",
	"EMAIL_BATCH_SIZE":     "10",
	"AUTO_RECEIVE":         "true",
	"AUTO_BILL":            "true",
	"AUTO_INVOICE":         "true",
	"AUTO_SHIP":            "true",
	"MARK_BILLS_PAID":      "false",
	"ENABLE_DRY_RUN":       "false",
}

var required = []string{
	"DATABASE_URL",
	"OPENAI_API_KEY",
	"BOOKS_CLIENT_ID",
	"BOOKS_CLIENT_SECRET",
	"BOOKS_REFRESH_TOKEN",
	"BOOKS_ORGANIZATION_ID",
}

var sensitive = map[string]bool{
	"DATABASE_URL":        true,
	"OPENAI_API_KEY":      true,
	"BOOKS_CLIENT_SECRET": true,
	"BOOKS_REFRESH_TOKEN": true,
	"WEBHOOK_URL":         true,
}

// Load reads the .env file if present and validates required keys.
func Load(log *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c := &Config{log: log}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.logStatus()
	return c, nil
}

func (c *Config) validate() error {
	var missing []string
	for _, key := range required {
		if os.Getenv(key) == "" {
			// Dry runs use the in-memory store, no database needed.
			if key == "DATABASE_URL" && c.GetBool("ENABLE_DRY_RUN") {
				continue
			}
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) logStatus() {
	if c.log == nil {
		return
	}
	fields := logrus.Fields{}
	for _, key := range required {
		if sensitive[key] {
			fields[key] = mask(os.Getenv(key))
		} else {
			fields[key] = os.Getenv(key)
		}
	}
	c.log.WithFields(fields).Info("configuration loaded")
}

func mask(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return v[:2] + strings.Repeat("*", len(v)-4) + v[len(v)-2:]
}

// Get returns the value for key, falling back to the built-in default.
func (c *Config) Get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaults[key]
}

// GetInt parses key as an integer, returning the default on error.
func (c *Config) GetInt(key string) int {
	v := c.Get(key)
	n, err := strconv.Atoi(v)
	if err != nil {
		if d, ok := defaults[key]; ok {
			n, _ = strconv.Atoi(d)
			return n
		}
		return 0
	}
	return n
}

// GetFloat parses key as a float64, returning the default on error.
func (c *Config) GetFloat(key string) float64 {
	v := c.Get(key)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if d, ok := defaults[key]; ok {
			f, _ = strconv.ParseFloat(d, 64)
			return f
		}
		return 0
	}
	return f
}

// GetBool parses key as a boolean. Accepts 1/t/true/yes and 0/f/false/no.
func (c *Config) GetBool(key string) bool {
	switch strings.ToLower(c.Get(key)) {
	case "1", "t", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// GetDuration parses key with time.ParseDuration. Bare integers are
// treated as seconds for compatibility with older deployments.
func (c *Config) GetDuration(key string) time.Duration {
	v := c.Get(key)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		d, _ = time.ParseDuration(defaults[key])
	}
	return d
}
