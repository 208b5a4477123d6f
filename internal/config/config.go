package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
	RedisURL      string `mapstructure:"REDIS_URL"`

	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	TokenTTL      time.Duration `mapstructure:"TOKEN_TTL"`
	AdminEmail    string        `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string        `mapstructure:"ADMIN_PASSWORD"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	AppURL      string   `mapstructure:"APP_URL"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`
	ContactInbox string `mapstructure:"CONTACT_INBOX"`

	CloudinaryURL    string `mapstructure:"CLOUDINARY_URL"`
	CloudinaryFolder string `mapstructure:"CLOUDINARY_FOLDER"`

	RazorpayKeyID         string `mapstructure:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret     string `mapstructure:"RAZORPAY_KEY_SECRET"`
	RazorpayWebhookSecret string `mapstructure:"RAZORPAY_WEBHOOK_SECRET"`
	PaymentCurrency       string `mapstructure:"PAYMENT_CURRENCY"`
	PaymentCallbackURL    string `mapstructure:"PAYMENT_CALLBACK_URL"`

	TwilioAccountSID string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string `mapstructure:"TWILIO_FROM"`

	OutboxWorkers       int    `mapstructure:"OUTBOX_WORKERS"`
	OutboxRetrySchedule string `mapstructure:"OUTBOX_RETRY_SCHEDULE"`
	OutboxMaxAttempts   int    `mapstructure:"OUTBOX_MAX_ATTEMPTS"`
}

var defaults = map[string]interface{}{
	"PORT":                  "8080",
	"ENV":                   "development",
	"LOG_LEVEL":             "info",
	"STORE_DRIVER":          DriverMongo,
	"MONGO_DATABASE":        "prescripto",
	"TOKEN_TTL":             "168h",
	"CORS_ORIGINS":          "http://localhost:5173,http://localhost:5174",
	"APP_URL":               "http://localhost:5173",
	"SMTP_PORT":             587,
	"CLOUDINARY_FOLDER":     "prescripto",
	"PAYMENT_CURRENCY":      "INR",
	"OUTBOX_WORKERS":        4,
	"OUTBOX_RETRY_SCHEDULE": "@every 1m",
	"OUTBOX_MAX_ATTEMPTS":   5,
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"STORE_DRIVER", "MONGODB_URI", "MONGO_DATABASE", "REDIS_URL",
	"JWT_SECRET", "TOKEN_TTL", "ADMIN_EMAIL", "ADMIN_PASSWORD",
	"CORS_ORIGINS", "APP_URL",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "MAIL_FROM", "CONTACT_INBOX",
	"CLOUDINARY_URL", "CLOUDINARY_FOLDER",
	"RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET", "RAZORPAY_WEBHOOK_SECRET", "PAYMENT_CURRENCY", "PAYMENT_CALLBACK_URL",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM",
	"OUTBOX_WORKERS", "OUTBOX_RETRY_SCHEDULE", "OUTBOX_MAX_ATTEMPTS",
}

// Load reads the configuration from the environment. When envFile exists it is
// loaded first; variables already set in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	return cfg, nil
}

// splitList trims entries and drops empty ones; a single comma-joined entry is split.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate reports every setting that would stop the server from running.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required when STORE_DRIVER=mongo"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverMemory, c.StoreDriver))
	}
	if c.AdminEmail == "" || c.AdminPassword == "" {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD are required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUsername != ""
}

func (c *Config) PaymentsConfigured() bool {
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != ""
}

func (c *Config) SMSConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}
