package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	OpenAIAPIKey      string
	RealtimeURL       string
	RealtimeVoice     string
	RealtimeModel     string
	GreetingDelay     time.Duration
	SilenceTimeout    time.Duration
	MaxCallDuration   time.Duration
	WatchdogInterval  time.Duration
	SlotDurationMins  int
	AvailabilityDays  int
	SaveCallAudio     bool
	ResampleRecording bool
	CallAudioDir      string

	AdminJWTSecret string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ArchiveBucket       string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		RealtimeURL:       getEnv("OPENAI_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeVoice:     getEnv("OPENAI_REALTIME_VOICE", "alloy"),
		RealtimeModel:     getEnv("OPENAI_REALTIME_MODEL", "gpt-realtime"),
		GreetingDelay:     getEnvAsDuration("GREETING_DELAY", 250*time.Millisecond),
		SilenceTimeout:    getEnvAsDuration("SILENCE_TIMEOUT", 8*time.Second),
		MaxCallDuration:   getEnvAsDuration("MAX_CALL_DURATION", 5*time.Minute),
		WatchdogInterval:  getEnvAsDuration("WATCHDOG_INTERVAL", 1*time.Second),
		SlotDurationMins:  getEnvAsInt("SLOT_DURATION_MINS", 30),
		AvailabilityDays:  getEnvAsInt("AVAILABILITY_DAYS", 7),
		SaveCallAudio:     getEnvAsBool("SAVE_CALL_AUDIO", true),
		ResampleRecording: getEnvAsBool("RESAMPLE_RECORDING", false),
		CallAudioDir:      getEnv("CALL_AUDIO_DIR", "recordings"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ArchiveBucket:       getEnv("CALL_ARCHIVE_BUCKET", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Care Scheduling"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
