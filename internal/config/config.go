package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/clinic/clinic/internal/availability"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	TLSEnabled     bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile    string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string   `mapstructure:"TLS_KEY_FILE"`

	// Booking
	Timezone              string `mapstructure:"TIMEZONE"`
	SlotGridStart         string `mapstructure:"SLOT_GRID_START"`
	SlotGridEnd           string `mapstructure:"SLOT_GRID_END"`
	SlotGridStepMinutes   int    `mapstructure:"SLOT_GRID_STEP_MINUTES"`
	DefaultWhenNoSchedule string `mapstructure:"DEFAULT_WHEN_NO_SCHEDULE"`
	TimeMarkerAM          string `mapstructure:"TIME_MARKER_AM"`
	TimeMarkerPM          string `mapstructure:"TIME_MARKER_PM"`

	// Cache, broker, object storage
	RedisURL             string        `mapstructure:"REDIS_URL"`
	AvailabilityCacheTTL time.Duration `mapstructure:"AVAILABILITY_CACHE_TTL"`
	AMQPURL              string        `mapstructure:"AMQP_URL"`
	AMQPExchange         string        `mapstructure:"AMQP_EXCHANGE"`
	MinioEndpoint        string        `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey       string        `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey       string        `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket          string        `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL          bool          `mapstructure:"MINIO_USE_SSL"`

	// Reminders
	SendGridAPIKey   string `mapstructure:"SENDGRID_API_KEY"`
	MailFromAddress  string `mapstructure:"MAIL_FROM_ADDRESS"`
	MailFromName     string `mapstructure:"MAIL_FROM_NAME"`
	TwilioAccountSID string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `mapstructure:"TWILIO_FROM_NUMBER"`
	ReminderCron     string `mapstructure:"REMINDER_CRON"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"TIMEZONE", "SLOT_GRID_START", "SLOT_GRID_END", "SLOT_GRID_STEP_MINUTES",
	"DEFAULT_WHEN_NO_SCHEDULE", "TIME_MARKER_AM", "TIME_MARKER_PM",
	"REDIS_URL", "AVAILABILITY_CACHE_TTL", "AMQP_URL", "AMQP_EXCHANGE",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
	"SENDGRID_API_KEY", "MAIL_FROM_ADDRESS", "MAIL_FROM_NAME",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER", "REMINDER_CRON",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("TIMEZONE", "Asia/Riyadh")
	v.SetDefault("SLOT_GRID_START", availability.DefaultGridStart)
	v.SetDefault("SLOT_GRID_END", availability.DefaultGridEnd)
	v.SetDefault("SLOT_GRID_STEP_MINUTES", int(availability.DefaultGridStep/time.Minute))
	v.SetDefault("DEFAULT_WHEN_NO_SCHEDULE", string(availability.NoScheduleBookable))
	v.SetDefault("TIME_MARKER_AM", availability.DefaultMarkers.AM)
	v.SetDefault("TIME_MARKER_PM", availability.DefaultMarkers.PM)
	v.SetDefault("AVAILABILITY_CACHE_TTL", "5m")
	v.SetDefault("AMQP_EXCHANGE", "clinic.events")
	v.SetDefault("MINIO_BUCKET", "clinic")
	v.SetDefault("MAIL_FROM_NAME", "Clinic")
	v.SetDefault("REMINDER_CRON", "@every 5m")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active and requests are not authenticated.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location loads TIMEZONE, falling back to UTC when it is empty.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ResolverOptions builds the default availability options. Centre settings
// stored in the database may override them per request.
func (c *Config) ResolverOptions() (availability.Options, error) {
	grid, err := availability.NewGrid(c.SlotGridStart, c.SlotGridEnd, time.Duration(c.SlotGridStepMinutes)*time.Minute)
	if err != nil {
		return availability.Options{}, fmt.Errorf("slot grid: %w", err)
	}
	policy, err := availability.ParseNoSchedulePolicy(c.DefaultWhenNoSchedule)
	if err != nil {
		return availability.Options{}, err
	}
	return availability.Options{
		Grid:       grid,
		Markers:    availability.Markers{AM: c.TimeMarkerAM, PM: c.TimeMarkerPM},
		NoSchedule: policy,
	}, nil
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT verification source must be configured.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" && c.AuthIssuer == "" {
		return fmt.Errorf(
			"one of AUTH_SIGNING_KEY, AUTH_JWKS_URL or AUTH_ISSUER must be set when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.ResolverOptions(); err != nil {
		return err
	}
	if c.TimeMarkerAM == "" || c.TimeMarkerPM == "" || c.TimeMarkerAM == c.TimeMarkerPM {
		return fmt.Errorf("TIME_MARKER_AM and TIME_MARKER_PM must be set and differ")
	}
	if c.AvailabilityCacheTTL < 0 {
		return fmt.Errorf("AVAILABILITY_CACHE_TTL must not be negative")
	}
	if c.RedisURL != "" && !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://")
	}
	if c.AMQPURL != "" && !strings.HasPrefix(c.AMQPURL, "amqp://") && !strings.HasPrefix(c.AMQPURL, "amqps://") {
		return fmt.Errorf("AMQP_URL must start with amqp:// or amqps://")
	}
	if c.MinioEndpoint != "" && (c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}
	return nil
}
