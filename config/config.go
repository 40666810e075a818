package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Encoder    EncoderConfig
	Stream     StreamConfig
	Adaptation AdaptationConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/broadcaster?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings (notification outbox).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EncoderConfig holds external encoder settings.
type EncoderConfig struct {
	FFmpegPath string // path to the ffmpeg binary
	WorkDir    string // directory for generated concat manifests; empty = os.TempDir()
}

// StreamConfig holds broadcast supervision defaults.
type StreamConfig struct {
	DefaultRTMPURL        string // used when a start request carries no destination
	DefaultStreamKey      string
	DefaultTier           int // quality tier fallback (e.g. 720)
	RestartCeiling        int // max unintentional restarts before a session is declared crashed
	RestartBackoff        time.Duration
	StopTimeout           time.Duration // graceful termination wait before SIGKILL
	SingleSessionPerOwner bool          // deployment mode: one live session per owner
}

// AdaptationConfig holds the CPU-driven quality adaptation loop settings.
type AdaptationConfig struct {
	Enabled       bool
	Interval      time.Duration
	HighWaterPct  float64 // step quality down when CPU rises above this
	LowWaterPct   float64 // step quality back up when CPU falls below this
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/broadcaster?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "broadcaster"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Encoder: EncoderConfig{
			FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),
			WorkDir:    getEnv("ENCODER_WORK_DIR", ""),
		},
		Stream: StreamConfig{
			DefaultRTMPURL:        getEnv("DEFAULT_RTMP_URL", "rtmp://a.rtmp.youtube.com/live2"),
			DefaultStreamKey:      getEnv("DEFAULT_STREAM_KEY", ""),
			DefaultTier:           getEnvInt("DEFAULT_QUALITY", 720),
			RestartCeiling:        getEnvInt("RESTART_CEILING", 5),
			RestartBackoff:        getEnvDuration("RESTART_BACKOFF_SEC", 5),
			StopTimeout:           getEnvDuration("STOP_TIMEOUT_SEC", 10),
			SingleSessionPerOwner: getEnvBool("SINGLE_SESSION_PER_OWNER", false),
		},
		Adaptation: AdaptationConfig{
			Enabled:      getEnvBool("ADAPTATION_ENABLED", false),
			Interval:     getEnvDuration("ADAPTATION_INTERVAL_SEC", 30),
			HighWaterPct: getEnvFloat("ADAPTATION_HIGH_WATER_PCT", 85),
			LowWaterPct:  getEnvFloat("ADAPTATION_LOW_WATER_PCT", 40),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallbackSec int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSec)) * time.Second
}
