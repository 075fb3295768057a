package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("JWT_EXPIRES_IN", "")
	t.Setenv("TRUSTED_PROXIES", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Nil(t, cfg.Server.TrustedProxies)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 2, cfg.Business.MaxShippingAddresses)
	assert.Equal(t, 7, cfg.Business.EstimatedDeliveryDays)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("BCRYPT_COST", "not-a-number")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.1")

	cfg := Load()

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.1"}, cfg.Server.TrustedProxies)
}

func TestLoadAllowRoleOnRegister(t *testing.T) {
	t.Setenv("ALLOW_ROLE_ON_REGISTER", "")
	assert.False(t, Load().Auth.AllowRoleOnRegister)

	t.Setenv("ALLOW_ROLE_ON_REGISTER", "true")
	assert.True(t, Load().Auth.AllowRoleOnRegister)
}
