package postgres

import (
	"fmt"
	"time"
)

// Config holds PostgreSQL connection settings for the driver.
// Prefer providing a connection URL. When empty, a DSN is synthesized from
// the individual fields with development-friendly defaults.
type Config struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns       int
	ConnectTimeout time.Duration

	// AutoProvision lets Setup create the missing role/database on first
	// connect failure. Development convenience only.
	AutoProvision bool
}

// connString returns the URL when set, otherwise a key=value DSN built from
// the discrete fields.
func (c *Config) connString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		valueOrDefault(c.Host, "localhost"),
		valueOrDefault(c.Port, "5432"),
		valueOrDefault(c.User, "postgres"),
		c.Password,
		valueOrDefault(c.DBName, "postgres"),
		valueOrDefault(c.SSLMode, "disable"),
	)
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
