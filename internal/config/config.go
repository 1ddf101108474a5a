package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Notification channels understood by the reminder scheduler.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port        string
	DatabaseURL string
	SQLitePath  string

	JWTSecret string
	JWTTTL    time.Duration

	TickInterval  time.Duration
	NotifyTimeout time.Duration
	NotifyChannel string

	EmailHost     string
	EmailPort     int
	EmailUser     string
	EmailPassword string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	OpenAIAPIKey  string
	LocalTimezone *time.Location

	RateLimitAuth int
}

// Load reads configuration values and prepares defaults where applicable.
// Missing credentials for the selected notification channel are reported as an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getenvDefault("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       getenvDefault("SQLITE_PATH", "events.db"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTTTL:           ParseDurationEnv("JWT_TTL", 30*24*time.Hour),
		TickInterval:     time.Duration(ParseIntEnv("TICK_INTERVAL_SECONDS", 60)) * time.Second,
		NotifyTimeout:    ParseDurationEnv("NOTIFY_TIMEOUT", 30*time.Second),
		NotifyChannel:    strings.ToLower(getenvDefault("NOTIFY_CHANNEL", ChannelEmail)),
		EmailHost:        getenvDefault("EMAIL_HOST", "smtp.gmail.com"),
		EmailPort:        ParseIntEnv("EMAIL_PORT", 587),
		EmailUser:        os.Getenv("EMAIL_USER"),
		EmailPassword:    os.Getenv("EMAIL_PASSWORD"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		RateLimitAuth:    ParseIntEnv("RATE_LIMIT_AUTH", 10),
	}

	timezoneName := getenvDefault("LOCAL_TIMEZONE", "Local")
	location, err := time.LoadLocation(timezoneName)
	if err != nil {
		log.Printf("config: invalid LOCAL_TIMEZONE %q, defaulting to system local: %v", timezoneName, err)
		location = time.Local
	}
	cfg.LocalTimezone = location

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the values required at startup are present and sane.
func (c *Config) Validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	switch c.NotifyChannel {
	case ChannelEmail:
		if c.EmailUser == "" {
			missing = append(missing, "EMAIL_USER")
		}
		if c.EmailPassword == "" {
			missing = append(missing, "EMAIL_PASSWORD")
		}
	case ChannelSMS:
		if c.TwilioAccountSID == "" {
			missing = append(missing, "TWILIO_ACCOUNT_SID")
		}
		if c.TwilioAuthToken == "" {
			missing = append(missing, "TWILIO_AUTH_TOKEN")
		}
		if c.TwilioFromNumber == "" {
			missing = append(missing, "TWILIO_FROM_NUMBER")
		}
	default:
		return fmt.Errorf("config: unsupported NOTIFY_CHANNEL %q (want %q or %q)", c.NotifyChannel, ChannelEmail, ChannelSMS)
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: TICK_INTERVAL_SECONDS must be positive, got %s", c.TickInterval)
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("config: NOTIFY_TIMEOUT must be positive, got %s", c.NotifyTimeout)
	}
	return nil
}

func getenvDefault(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

// ParseIntEnv returns the integer value for an environment variable or the provided default.
func ParseIntEnv(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as int: %v", key, value, err)
		return def
	}
	return parsed
}

// ParseDurationEnv returns the duration value for an environment variable or the provided default.
func ParseDurationEnv(key string, def time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as duration: %v", key, value, err)
		return def
	}
	return parsed
}
