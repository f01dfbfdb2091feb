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
	SensorDriverBME280    = "bme280"
	SensorDriverMQTT      = "mqtt"
	SensorDriverSimulated = "simulated"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	// HTTPAddr is empty when the JSON API is disabled (HTTP_ADDR=off).
	HTTPAddr string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	SQLiteBusyTimeout     time.Duration
	SQLiteTrace           bool

	QueryTimeout   time.Duration
	StoreRetryMax  int
	SampleInterval time.Duration

	SensorDriver  string
	BME280Address uint16
	SensorMaxAge  time.Duration

	StationID    string
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string

	DisplayLocation *time.Location
}

// MQTTEnabled reports whether a broker was configured.
func (c Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	httpAddr := env("HTTP_ADDR", ":8080")
	if strings.EqualFold(httpAddr, "off") {
		httpAddr = ""
	}

	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 4)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", 2)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := envDuration("DB_CONN_MAX_LIFETIME", "0s")
	if err != nil {
		return Config{}, err
	}
	busyTimeout, err := envDuration("DB_BUSY_TIMEOUT", "5s")
	if err != nil {
		return Config{}, err
	}
	trace, err := envBool("DB_TRACE", false)
	if err != nil {
		return Config{}, err
	}
	queryTimeout, err := envDuration("DB_QUERY_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	if queryTimeout <= 0 {
		return Config{}, fmt.Errorf("DB_QUERY_TIMEOUT must be positive, got %v", queryTimeout)
	}
	retryMax, err := envInt("STORE_RETRY_MAX", 5)
	if err != nil {
		return Config{}, err
	}
	if retryMax < 0 {
		return Config{}, fmt.Errorf("STORE_RETRY_MAX must be >= 0, got %d", retryMax)
	}

	intervalSeconds, err := envInt("SAMPLE_INTERVAL", 300)
	if err != nil {
		return Config{}, err
	}
	if intervalSeconds <= 0 {
		return Config{}, fmt.Errorf("SAMPLE_INTERVAL must be positive, got %d", intervalSeconds)
	}

	sensorDriver := strings.ToLower(env("SENSOR_DRIVER", SensorDriverBME280))
	switch sensorDriver {
	case SensorDriverBME280, SensorDriverMQTT, SensorDriverSimulated:
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_DRIVER %q (allowed: bme280, mqtt, simulated)", sensorDriver)
	}

	bme280AddressStr := env("BME280_ADDRESS", "0x76")
	bme280Address, err := strconv.ParseUint(bme280AddressStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BME280_ADDRESS %q: %w", bme280AddressStr, err)
	}

	sensorMaxAge, err := envDuration("SENSOR_MAX_AGE", "15m")
	if err != nil {
		return Config{}, err
	}

	stationID := env("STATION_ID", "sensehat")

	mqttPort, err := envInt("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	mqttBroker := env("MQTT_BROKER", "")
	if sensorDriver == SensorDriverMQTT && mqttBroker == "" {
		return Config{}, fmt.Errorf("SENSOR_DRIVER=mqtt requires MQTT_BROKER")
	}

	loc := time.Local
	if tz := env("DISPLAY_TZ", ""); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DISPLAY_TZ %q: %w", tz, err)
		}
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              httpAddr,
		SQLiteDriver:          env("DB_DRIVER", "sqlite3"),
		SQLiteDSN:             env("SQLITE_DSN", ""),
		SQLitePath:            env("SQLITE_PATH", "sensehat.db"),
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteBusyTimeout:     busyTimeout,
		SQLiteTrace:           trace,
		QueryTimeout:          queryTimeout,
		StoreRetryMax:         retryMax,
		SampleInterval:        time.Duration(intervalSeconds) * time.Second,
		SensorDriver:          sensorDriver,
		BME280Address:         uint16(bme280Address),
		SensorMaxAge:          sensorMaxAge,
		StationID:             stationID,
		MQTTBroker:            mqttBroker,
		MQTTPort:              mqttPort,
		MQTTClientID:          env("MQTT_CLIENT_ID", "enviro-pi"),
		MQTTTopic:             env("MQTT_TOPIC", fmt.Sprintf("stations/%s/telemetry", stationID)),
		DisplayLocation:       loc,
	}, nil
}

func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envDuration(key, def string) (time.Duration, error) {
	s := env(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
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
