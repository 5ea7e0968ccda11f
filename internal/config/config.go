package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	ClinicTimezone string

	// HTTP surface
	CORSAllowedOrigins []string
	WriteRateLimit     float64
	WriteBurst         int

	// Calendar sources
	ProvidersFile         string
	GoogleCredentialsFile string
	CalendarFetchTimeout  time.Duration
	CalendarMaxParallel   int

	// Title markers
	SlotGranularity    time.Duration
	AvailabilityTokens []string
	NameTokens         []string
	PhoneTokens        []string
	PaymentTokens      []string

	// Phone numbering plan
	PhoneCountryCode  string
	PhoneMobilePrefix string
	PhoneAreaCodes    []string

	// Analytics
	LoyaltyRegularVisits  int
	LoyaltyVIPVisits      int
	LoyaltyPlatinumVisits int
	InactivityWindow      time.Duration
	KPITopN               int
	KPICacheTTL           time.Duration
	KPISnapshotBucket     string

	// AWS (snapshot archive)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Scheduled refresh
	SyncCron       string
	SyncWindowDays int
}

// LoadDotEnv loads a .env file into the process environment when one exists.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "America/Argentina/Buenos_Aires"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		WriteRateLimit:     getEnvAsFloat("WRITE_RATE_LIMIT", 1),
		WriteBurst:         getEnvAsInt("WRITE_BURST", 5),

		ProvidersFile:         getEnv("PROVIDERS_FILE", "providers.yaml"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		CalendarFetchTimeout:  getEnvAsDuration("CALENDAR_FETCH_TIMEOUT", 10*time.Second),
		CalendarMaxParallel:   getEnvAsInt("CALENDAR_MAX_PARALLEL", 8),

		SlotGranularity:    getEnvAsDuration("SLOT_GRANULARITY", 30*time.Minute),
		AvailabilityTokens: getEnvAsList("AVAILABILITY_TOKENS", []string{"Ocupar"}),
		NameTokens:         getEnvAsList("NAME_TOKENS", []string{"N"}),
		PhoneTokens:        getEnvAsList("PHONE_TOKENS", []string{"T"}),
		PaymentTokens:      getEnvAsList("PAYMENT_TOKENS", []string{"pago"}),

		PhoneCountryCode:  getEnv("PHONE_COUNTRY_CODE", "54"),
		PhoneMobilePrefix: getEnv("PHONE_MOBILE_PREFIX", "9"),
		PhoneAreaCodes:    getEnvAsList("PHONE_AREA_CODES", []string{"11"}),

		LoyaltyRegularVisits:  getEnvAsInt("LOYALTY_REGULAR_VISITS", 3),
		LoyaltyVIPVisits:      getEnvAsInt("LOYALTY_VIP_VISITS", 6),
		LoyaltyPlatinumVisits: getEnvAsInt("LOYALTY_PLATINUM_VISITS", 12),
		InactivityWindow:      getEnvAsDuration("INACTIVITY_WINDOW", 180*24*time.Hour),
		KPITopN:               getEnvAsInt("KPI_TOP_N", 5),
		KPICacheTTL:           getEnvAsDuration("KPI_CACHE_TTL", 6*time.Hour),
		KPISnapshotBucket:     getEnv("KPI_SNAPSHOT_BUCKET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SyncCron:       getEnv("SYNC_CRON", "0 3 * * *"),
		SyncWindowDays: getEnvAsInt("SYNC_WINDOW_DAYS", 30),
	}
}

// Location resolves ClinicTimezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.ClinicTimezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
