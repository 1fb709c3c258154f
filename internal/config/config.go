package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	prommodel "github.com/prometheus/common/model"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Explore  ExploreConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	StreamLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	JwtSecret string
}

type ExploreConfig struct {
	URLDebounce        time.Duration
	LiveThrottle       time.Duration
	HistorySize        int
	RemoteHistory      bool
	HistoryTopic       string
	HistoryRetention   time.Duration
	SessionTTL         time.Duration
	SessionCleanup     time.Duration
	DefaultTimezone    string
	DefaultRangeFrom   string
	DefaultRangeTo     string
	DefaultDatasource  string
	TestdataLiveEvery  time.Duration
	BroadcastMinPeriod time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/explore.log"),
			StreamLogFilePath:  getEnv("STREAM_LOG_FILE_PATH", "logs/explore-stream.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Explore: ExploreConfig{
			URLDebounce:        getEnvAsDuration("EXPLORE_URL_DEBOUNCE", 200*time.Millisecond),
			LiveThrottle:       getEnvAsDuration("EXPLORE_LIVE_THROTTLE", 500*time.Millisecond),
			HistorySize:        getEnvAsInt("EXPLORE_HISTORY_SIZE", 100),
			RemoteHistory:      getEnvAsBool("EXPLORE_REMOTE_HISTORY", true),
			HistoryTopic:       getEnv("EXPLORE_HISTORY_TOPIC_NAME", "EXPLORE_QUERY_HISTORY"),
			HistoryRetention:   getEnvAsDuration("EXPLORE_HISTORY_RETENTION", 14*24*time.Hour),
			SessionTTL:         getEnvAsDuration("EXPLORE_SESSION_TTL", time.Hour),
			SessionCleanup:     getEnvAsDuration("EXPLORE_SESSION_CLEANUP", 10*time.Minute),
			DefaultTimezone:    getEnv("EXPLORE_DEFAULT_TIMEZONE", "browser"),
			DefaultRangeFrom:   getEnv("EXPLORE_DEFAULT_RANGE_FROM", "now-1h"),
			DefaultRangeTo:     getEnv("EXPLORE_DEFAULT_RANGE_TO", "now"),
			DefaultDatasource:  getEnv("EXPLORE_DEFAULT_DATASOURCE", "testdata"),
			TestdataLiveEvery:  getEnvAsDuration("EXPLORE_TESTDATA_LIVE_INTERVAL", time.Second),
			BroadcastMinPeriod: getEnvAsDuration("EXPLORE_BROADCAST_MIN_PERIOD", 100*time.Millisecond),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("250ms") as well as Prometheus
// style ones ("1d").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if value, err := prommodel.ParseDuration(strValue); err == nil {
		return time.Duration(value)
	}
	log.Printf("Warn: invalid duration %q for %s, using %s", strValue, key, fallback)
	return fallback
}
