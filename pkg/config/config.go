package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"drivethru-server/pkg/errors"
)

// Config is the root server configuration
type Config struct {
	HTTP      HTTPConfig
	Logging   LoggingConfig
	Messaging MessagingConfig
	Database  DatabaseConfig
}

// HTTPConfig holds the HTTP listener configuration
type HTTPConfig struct {
	Port           int
	MetricsEnabled bool
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string
	Format     string
	OutputFile string
}

// MessagingConfig holds AMQP configuration
type MessagingConfig struct {
	Enabled       bool
	AMQPUrl       string
	AMQPQueueName string
	ExchangeName  string
	RoutingKey    string
}

// DatabaseConfig holds the storage backend selection. When disabled the
// server runs on the in-memory store, useful for local development.
type DatabaseConfig struct {
	Enabled bool
}

// Load loads the configuration from environment variables or .env file
func Load(logger *logrus.Logger) (*Config, error) {
	loadEnvFile(logger)

	config := &Config{}

	if err := loadHTTPConfig(logger, &config.HTTP); err != nil {
		return nil, errors.Wrap(err, "failed to load HTTP configuration")
	}

	loadLoggingConfig(&config.Logging)
	loadMessagingConfig(logger, &config.Messaging)

	config.Database.Enabled = getEnvBool("DB_ENABLED", false)

	return config, nil
}

// loadEnvFile tries the usual .env locations before falling back to the
// process environment.
func loadEnvFile(logger *logrus.Logger) {
	wd, _ := os.Getwd()
	possibleEnvFiles := []string{
		".env",
		"../.env",
		filepath.Join(wd, ".env"),
	}

	var loadedFrom string
	for _, envFile := range possibleEnvFiles {
		if _, statErr := os.Stat(envFile); statErr == nil {
			if err := godotenv.Load(envFile); err == nil {
				loadedFrom, _ = filepath.Abs(envFile)
				break
			}
		}
	}

	if loadedFrom != "" {
		logger.WithFields(logrus.Fields{
			"working_dir": wd,
			"path":        loadedFrom,
		}).Info("Successfully loaded .env file")
	} else {
		logger.WithField("working_dir", wd).Warn("No .env file found, using environment variables only")
	}
}

func loadHTTPConfig(logger *logrus.Logger, config *HTTPConfig) error {
	config.Port = getEnvInt("HTTP_PORT", 8080)
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", config.Port)
	}

	config.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)
	config.ReadTimeout = getEnvDuration(logger, "HTTP_READ_TIMEOUT", 10*time.Second)
	config.WriteTimeout = getEnvDuration(logger, "HTTP_WRITE_TIMEOUT", 30*time.Second)
	return nil
}

func loadLoggingConfig(config *LoggingConfig) {
	config.Level = getEnv("LOG_LEVEL", "info")
	config.Format = getEnv("LOG_FORMAT", "json")
	config.OutputFile = getEnv("LOG_OUTPUT_FILE", "")
}

func loadMessagingConfig(logger *logrus.Logger, config *MessagingConfig) {
	config.Enabled = getEnvBool("AMQP_ENABLED", false)
	config.AMQPUrl = getEnv("AMQP_URL", "")
	config.AMQPQueueName = getEnv("AMQP_QUEUE_NAME", "drivethru_conversations")
	config.ExchangeName = getEnv("AMQP_EXCHANGE_NAME", "drivethru.conversations")
	config.RoutingKey = getEnv("AMQP_ROUTING_KEY", "conversation.complete")

	if config.Enabled && config.AMQPUrl == "" {
		logger.Warn("AMQP_ENABLED is set but AMQP_URL is empty, messaging will be disabled")
		config.Enabled = false
	}
}

// ApplyLogging configures the logger from the loaded logging section
func (c *Config) ApplyLogging(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}
	logger.SetLevel(level)

	if c.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if c.Logging.OutputFile != "" {
		f, err := os.OpenFile(c.Logging.OutputFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to open log file: %s", c.Logging.OutputFile))
		}
		logger.SetOutput(f)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(logger *logrus.Logger, key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logger.WithField("key", key).Warnf("Invalid duration value, using default: %s", defaultValue)
	}
	return defaultValue
}
