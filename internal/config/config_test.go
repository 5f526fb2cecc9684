package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_NAME", "wishes_test")
	t.Setenv("AUDIT_INTERVAL", "15m")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("ALLOWED_CIDRS", " 10.0.0.0/8, ,192.168.0.0/16 ")

	cfg := LoadConfig()

	assert.Equal(t, "wishes_test", cfg.DBName)
	assert.Equal(t, 15*time.Minute, cfg.AuditInterval)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.AllowedCIDRs)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{DisplayTimezone: "Nowhere/Atlantis"}
	assert.Equal(t, time.UTC, cfg.Location())
}
