package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigConnString(t *testing.T) {
	t.Run("Should prefer the URL when set", func(t *testing.T) {
		cfg := &Config{URL: "postgresql://news@localhost/newsdb", Host: "ignored"}
		assert.Equal(t, "postgresql://news@localhost/newsdb", cfg.connString())
	})

	t.Run("Should synthesize a DSN with development defaults", func(t *testing.T) {
		cfg := &Config{}
		assert.Equal(t,
			"host=localhost port=5432 user=postgres password= dbname=postgres sslmode=disable",
			cfg.connString())
	})

	t.Run("Should use the discrete fields when provided", func(t *testing.T) {
		cfg := &Config{Host: "db.internal", Port: "5433", User: "news", Password: "pw", DBName: "newsdb", SSLMode: "require"}
		assert.Equal(t,
			"host=db.internal port=5433 user=news password=pw dbname=newsdb sslmode=require",
			cfg.connString())
	})
}
