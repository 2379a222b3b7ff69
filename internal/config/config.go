package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	TransportMQTT      = "mqtt"
	TransportWebSocket = "websocket"

	// MaxScheduleLimit caps how many upcoming departures one query returns.
	MaxScheduleLimit = 20
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	// Bridge
	HTTPAddr          string
	Transport         string
	ScheduleBaseURL   string
	BridgeHTTPTimeout time.Duration // 0 disables the timeout
	MQTTBroker        string
	MQTTPort          int
	MQTTClientID      string
	MQTTTopicPrefix   string

	// Schedule server
	ScheduleAddr     string
	ScheduleLimit    int
	ScheduleCatalog  string
	ScheduleCacheTTL time.Duration

	SQLitePath            string
	SQLiteDSN             string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	SQLiteLogSQL          bool
}

func LoadFromEnv() (Config, error) {
	appEnv := envOr("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	transport := strings.ToLower(envOr("BRIDGE_TRANSPORT", TransportMQTT))
	switch transport {
	case TransportMQTT, TransportWebSocket:
	default:
		return Config{}, fmt.Errorf("invalid BRIDGE_TRANSPORT %q (allowed: mqtt, websocket)", transport)
	}

	baseURL := strings.TrimRight(envOr("SCHEDULE_BASE_URL", "http://localhost:8080"), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return Config{}, fmt.Errorf("invalid SCHEDULE_BASE_URL %q (must start with http:// or https://)", baseURL)
	}

	timeoutStr := envOr("BRIDGE_HTTP_TIMEOUT", "0s")
	bridgeTimeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BRIDGE_HTTP_TIMEOUT %q: %w", timeoutStr, err)
	}
	if bridgeTimeout < 0 {
		return Config{}, fmt.Errorf("BRIDGE_HTTP_TIMEOUT must not be negative, got %v", bridgeTimeout)
	}

	mqttPortStr := envOr("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	topicPrefix := strings.Trim(envOr("MQTT_TOPIC_PREFIX", "pebble"), "/")
	if topicPrefix == "" || strings.ContainsAny(topicPrefix, "+#") {
		return Config{}, fmt.Errorf("invalid MQTT_TOPIC_PREFIX %q", os.Getenv("MQTT_TOPIC_PREFIX"))
	}

	limitStr := envOr("SCHEDULE_LIMIT", "5")
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SCHEDULE_LIMIT %q: %w", limitStr, err)
	}
	if limit < 0 || limit > MaxScheduleLimit {
		return Config{}, fmt.Errorf("SCHEDULE_LIMIT must be between 0 and %d, got %d", MaxScheduleLimit, limit)
	}

	ttlStr := envOr("SCHEDULE_CACHE_TTL", "24h")
	cacheTTL, err := time.ParseDuration(ttlStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SCHEDULE_CACHE_TTL %q: %w", ttlStr, err)
	}
	if cacheTTL <= 0 {
		return Config{}, fmt.Errorf("SCHEDULE_CACHE_TTL must be positive, got %v", cacheTTL)
	}

	maxOpenConnsStr := envOr("DB_MAX_OPEN_CONNS", "1")
	maxOpenConns, err := strconv.Atoi(maxOpenConnsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_OPEN_CONNS %q: %w", maxOpenConnsStr, err)
	}

	maxIdleConnsStr := envOr("DB_MAX_IDLE_CONNS", "1")
	maxIdleConns, err := strconv.Atoi(maxIdleConnsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_IDLE_CONNS %q: %w", maxIdleConnsStr, err)
	}

	connMaxLifetimeStr := envOr("DB_CONN_MAX_LIFETIME", "0s")
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	logSQLStr := envOr("DB_LOG_SQL", "false")
	logSQL, err := strconv.ParseBool(logSQLStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_LOG_SQL %q: %w", logSQLStr, err)
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              envOr("HTTP_ADDR", ":8081"),
		Transport:             transport,
		ScheduleBaseURL:       baseURL,
		BridgeHTTPTimeout:     bridgeTimeout,
		MQTTBroker:            envOr("MQTT_BROKER", "localhost"),
		MQTTPort:              mqttPort,
		MQTTClientID:          envOr("MQTT_CLIENT_ID", "pathbridge"),
		MQTTTopicPrefix:       topicPrefix,
		ScheduleAddr:          envOr("SCHEDULE_ADDR", ":8080"),
		ScheduleLimit:         limit,
		ScheduleCatalog:       strings.TrimSpace(os.Getenv("SCHEDULE_CATALOG")),
		ScheduleCacheTTL:      cacheTTL,
		SQLitePath:            envOr("SQLITE_PATH", "data/schedule.db"),
		SQLiteDSN:             strings.TrimSpace(os.Getenv("SQLITE_DSN")),
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteLogSQL:          logSQL,
	}, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
