package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	TransportConsole = "console"
	TransportSMTP    = "smtp"
	TransportResend  = "resend"
)

// Config is the whole runtime configuration. It is built once by Load and
// passed to constructors; nothing below main reads the environment.
type Config struct {
	Env      string
	Port     int
	LogLevel string
	Location *time.Location

	CORSOrigins []string
	UploadDir   string

	Mongo    MongoDBConfig
	Auth     AuthConfig
	Email    EmailConfig
	WhatsApp WhatsAppConfig
	Dispatch DispatchConfig
	Redis    RedisConfig

	SchedulerInterval time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
}

type AuthConfig struct {
	JWTSecret  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type EmailConfig struct {
	Transport string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	ResendAPIKey string
	ResendFrom   string
}

type WhatsAppConfig struct {
	InstanceID string
	Token      string
	APIURL     string
}

// Enabled reports whether WhatsApp credentials were supplied.
func (c WhatsAppConfig) Enabled() bool {
	return c.InstanceID != "" && c.Token != ""
}

type DispatchConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_TIMEZONE", "Local")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MONGO_DATABASE", "smart_notice")
	v.SetDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	v.SetDefault("EMAIL_TRANSPORT", TransportConsole)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("WHATSAPP_API_URL", "https://api.ultramsg.com")
	v.SetDefault("DISPATCH_WORKERS", 2)
	v.SetDefault("DISPATCH_QUEUE_SIZE", 64)
	v.SetDefault("DISPATCH_TIMEOUT", 30*time.Second)
	v.SetDefault("SCHEDULER_INTERVAL", time.Minute)
	v.AutomaticEnv()
	return v
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	return load(newViper())
}

func load(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString("APP_TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("parse APP_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Env:         v.GetString("ENV"),
		Port:        v.GetInt("PORT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Location:    loc,
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		UploadDir:   v.GetString("UPLOAD_DIR"),
		Mongo: MongoDBConfig{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DATABASE"),
		},
		Auth: AuthConfig{
			JWTSecret:  []byte(v.GetString("JWT_SECRET")),
			AccessTTL:  v.GetDuration("ACCESS_TOKEN_TTL"),
			RefreshTTL: v.GetDuration("REFRESH_TOKEN_TTL"),
		},
		Email: EmailConfig{
			Transport:    strings.ToLower(v.GetString("EMAIL_TRANSPORT")),
			SMTPHost:     v.GetString("SMTP_HOST"),
			SMTPPort:     v.GetInt("SMTP_PORT"),
			SMTPUser:     v.GetString("SMTP_USER"),
			SMTPPass:     v.GetString("SMTP_PASS"),
			SMTPFrom:     v.GetString("SMTP_FROM"),
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
			ResendFrom:   v.GetString("RESEND_FROM"),
		},
		WhatsApp: WhatsAppConfig{
			InstanceID: v.GetString("WHATSAPP_INSTANCE_ID"),
			Token:      v.GetString("WHATSAPP_TOKEN"),
			APIURL:     strings.TrimRight(v.GetString("WHATSAPP_API_URL"), "/"),
		},
		Dispatch: DispatchConfig{
			Workers:   v.GetInt("DISPATCH_WORKERS"),
			QueueSize: v.GetInt("DISPATCH_QUEUE_SIZE"),
			Timeout:   v.GetDuration("DISPATCH_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		SchedulerInterval: v.GetDuration("SCHEDULER_INTERVAL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if len(c.Auth.JWTSecret) == 0 {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Email.Transport {
	case TransportConsole:
	case TransportSMTP:
		if c.Email.SMTPHost == "" || c.Email.SMTPFrom == "" {
			return fmt.Errorf("SMTP_HOST and SMTP_FROM are required for the smtp transport")
		}
	case TransportResend:
		if c.Email.ResendAPIKey == "" || c.Email.ResendFrom == "" {
			return fmt.Errorf("RESEND_API_KEY and RESEND_FROM are required for the resend transport")
		}
	default:
		return fmt.Errorf("unknown EMAIL_TRANSPORT %q", c.Email.Transport)
	}
	if c.Dispatch.Workers < 1 {
		return fmt.Errorf("DISPATCH_WORKERS must be positive")
	}
	if c.Dispatch.QueueSize < 1 {
		return fmt.Errorf("DISPATCH_QUEUE_SIZE must be positive")
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
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
