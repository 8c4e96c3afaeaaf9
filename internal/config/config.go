package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultListenAddr = ":8080"
	defaultDataDir    = "data"
	defaultDBFile     = "babelpdf.db"
	defaultEngineCmd  = "pdf2zh"

	// Development fallback only. Deployments must set their own secret.
	defaultJWTSecret = "babelpdf-dev-secret-change-in-production"

	envListenAddr        = "BABELPDF_LISTEN_ADDR"
	envDataDir           = "BABELPDF_DATA_DIR"
	envDBPath            = "BABELPDF_DB_PATH"
	envJWTSecret         = "BABELPDF_JWT_SECRET"
	envLogLevel          = "BABELPDF_LOG_LEVEL"
	envLogFile           = "BABELPDF_LOG_FILE"
	envEngineCmd         = "BABELPDF_ENGINE_CMD"
	envRedisAddr         = "BABELPDF_REDIS_ADDR"
	envAllowRegistration = "BABELPDF_ALLOW_REGISTRATION"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr        string
	DataDir           string
	DBPath            string
	JWTSecret         string
	LogLevel          slog.Level
	LogFile           string
	EngineCmd         string
	RedisAddr         string
	AllowRegistration bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:        defaultListenAddr,
		DataDir:           defaultDataDir,
		JWTSecret:         defaultJWTSecret,
		LogLevel:          slog.LevelInfo,
		EngineCmd:         defaultEngineCmd,
		AllowRegistration: true,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDataDir); v != "" {
		cfg.DataDir = v
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, defaultDBFile)
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envJWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envLogFile); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv(envEngineCmd); v != "" {
		cfg.EngineCmd = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv(envAllowRegistration); v != "" {
		cfg.AllowRegistration = parseBool(v, true)
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// LogWriter returns the destination for log output. When a log file is
// configured, output goes through a size-rotated file; otherwise stdout.
func (c Config) LogWriter() io.Writer {
	if c.LogFile == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}
