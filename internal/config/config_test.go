package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseViper(t *testing.T) func(map[string]interface{}) (*Config, error) {
	t.Helper()
	for _, k := range []string{"MONGO_URI", "JWT_SECRET", "EMAIL_TRANSPORT", "REDIS_ADDR", "APP_TIMEZONE"} {
		t.Setenv(k, "")
	}
	return func(overrides map[string]interface{}) (*Config, error) {
		v := newViper()
		v.Set("MONGO_URI", "mongodb://localhost:27017")
		v.Set("JWT_SECRET", "s3cret")
		v.Set("APP_TIMEZONE", "Asia/Kolkata")
		for k, val := range overrides {
			v.Set(k, val)
		}
		return load(v)
	}
}

func TestLoadDefaults(t *testing.T) {
	load := baseViper(t)
	cfg, err := load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "smart_notice", cfg.Mongo.Database)
	assert.Equal(t, TransportConsole, cfg.Email.Transport)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
	assert.False(t, cfg.WhatsApp.Enabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoadValidation(t *testing.T) {
	load := baseViper(t)

	tests := []struct {
		name      string
		overrides map[string]interface{}
	}{
		{"missing mongo uri", map[string]interface{}{"MONGO_URI": ""}},
		{"missing jwt secret", map[string]interface{}{"JWT_SECRET": ""}},
		{"unknown transport", map[string]interface{}{"EMAIL_TRANSPORT": "pigeon"}},
		{"smtp without host", map[string]interface{}{"EMAIL_TRANSPORT": "smtp"}},
		{"resend without key", map[string]interface{}{"EMAIL_TRANSPORT": "resend"}},
		{"bad timezone", map[string]interface{}{"APP_TIMEZONE": "Mars/Olympus"}},
		{"no workers", map[string]interface{}{"DISPATCH_WORKERS": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(tt.overrides)
			assert.Error(t, err)
		})
	}
}

func TestLoadTransports(t *testing.T) {
	load := baseViper(t)
	cfg, err := load(map[string]interface{}{
		"EMAIL_TRANSPORT":      "SMTP",
		"SMTP_HOST":            "smtp.uni.edu",
		"SMTP_FROM":            "notices@uni.edu",
		"WHATSAPP_INSTANCE_ID": "instance1",
		"WHATSAPP_TOKEN":       "tok",
		"WHATSAPP_API_URL":     "https://api.ultramsg.com/",
		"CORS_ORIGINS":         "https://a.uni.edu, ,https://b.uni.edu",
	})
	require.NoError(t, err)
	assert.Equal(t, TransportSMTP, cfg.Email.Transport)
	assert.True(t, cfg.WhatsApp.Enabled())
	assert.Equal(t, "https://api.ultramsg.com", cfg.WhatsApp.APIURL)
	assert.Equal(t, []string{"https://a.uni.edu", "https://b.uni.edu"}, cfg.CORSOrigins)
}
