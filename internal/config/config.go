package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const placeholderSecret = "your-secret-key-change-in-production"

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	FrontendURL     string        `yaml:"frontend_url" json:"frontend_url"`
	LoginPerMinute  int           `yaml:"login_per_minute" json:"login_per_minute"`
}

// MongoConfig represents document store configuration
type MongoConfig struct {
	URI               string        `yaml:"uri" json:"uri"`
	Database          string        `yaml:"database" json:"database"`
	MarketsCollection string        `yaml:"markets_collection" json:"markets_collection"`
	UsersCollection   string        `yaml:"users_collection" json:"users_collection"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// RabbitMQConfig represents broker configuration for worker control
type RabbitMQConfig struct {
	URL                 string        `yaml:"url" json:"url"`
	NotificationQueue   string        `yaml:"notification_queue" json:"notification_queue"`
	Exchange            string        `yaml:"exchange" json:"exchange"`
	HeartbeatRoutingKey string        `yaml:"heartbeat_routing_key" json:"heartbeat_routing_key"`
	HeartbeatTTL        time.Duration `yaml:"heartbeat_ttl" json:"heartbeat_ttl"`
	PublishTimeout      time.Duration `yaml:"publish_timeout" json:"publish_timeout"`
}

// Config represents the application configuration
type Config struct {
	Environment string       `yaml:"environment" json:"environment"`
	Version     string       `yaml:"version" json:"version"`
	LogLevel    string       `yaml:"log_level" json:"log_level"`
	Server      ServerConfig `yaml:"server" json:"server"`
	Mongo       MongoConfig  `yaml:"mongo" json:"mongo"`
	Redis       struct {
		Address  string        `yaml:"address" json:"address"`
		Password string        `yaml:"password" json:"password"`
		DB       int           `yaml:"db" json:"db"`
		StatsTTL time.Duration `yaml:"stats_ttl" json:"stats_ttl"`
	} `yaml:"redis" json:"redis"`
	JWT struct {
		Secret          string `yaml:"secret" json:"secret"`
		ExpirationHours int    `yaml:"expiration_hours" json:"expiration_hours"`
	} `yaml:"jwt" json:"jwt"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq" json:"rabbitmq"`
	Kafka    struct {
		Brokers    []string `yaml:"brokers" json:"brokers"`
		AuditTopic string   `yaml:"audit_topic" json:"audit_topic"`
	} `yaml:"kafka" json:"kafka"`
	Tracing struct {
		Exporter string `yaml:"exporter" json:"exporter"`
	} `yaml:"tracing" json:"tracing"`
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// keys maps viper keys to the environment variables that override them
var keys = map[string]string{
	"environment":                    "ENVIRONMENT",
	"version":                        "APP_VERSION",
	"log_level":                      "LOG_LEVEL",
	"server.host":                    "SERVER_HOST",
	"server.port":                    "SERVER_PORT",
	"server.read_timeout":            "SERVER_READ_TIMEOUT",
	"server.write_timeout":           "SERVER_WRITE_TIMEOUT",
	"server.shutdown_timeout":        "SERVER_SHUTDOWN_TIMEOUT",
	"server.frontend_url":            "FRONTEND_URL",
	"server.login_per_minute":        "LOGIN_RATE_PER_MINUTE",
	"mongo.uri":                      "MONGO_URI",
	"mongo.database":                 "MONGO_DB",
	"mongo.markets_collection":       "MONGO_COLLECTION",
	"mongo.users_collection":         "USERS_COLLECTION",
	"mongo.connect_timeout":          "MONGO_CONNECT_TIMEOUT",
	"redis.address":                  "REDIS_ADDRESS",
	"redis.password":                 "REDIS_PASSWORD",
	"redis.db":                       "REDIS_DB",
	"redis.stats_ttl":                "STATS_CACHE_TTL",
	"jwt.secret":                     "JWT_SECRET",
	"jwt.expiration_hours":           "JWT_EXPIRATION_HOURS",
	"rabbitmq.url":                   "RABBITMQ_URL",
	"rabbitmq.notification_queue":    "RABBITMQ_NOTIFICATION_QUEUE",
	"rabbitmq.exchange":              "RABBITMQ_EXCHANGE",
	"rabbitmq.heartbeat_routing_key": "HEARTBEAT_ROUTING_KEY",
	"rabbitmq.heartbeat_ttl":         "HEARTBEAT_TTL",
	"rabbitmq.publish_timeout":       "RABBITMQ_PUBLISH_TIMEOUT",
	"kafka.brokers":                  "KAFKA_BROKERS",
	"kafka.audit_topic":              "KAFKA_AUDIT_TOPIC",
	"tracing.exporter":               "TRACING_EXPORTER",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3002)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.login_per_minute", 10)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017/")
	v.SetDefault("mongo.database", "polymarket")
	v.SetDefault("mongo.markets_collection", "markets")
	v.SetDefault("mongo.users_collection", "users")
	v.SetDefault("mongo.connect_timeout", 10*time.Second)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stats_ttl", 30*time.Second)

	v.SetDefault("jwt.secret", placeholderSecret)
	v.SetDefault("jwt.expiration_hours", 24)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.notification_queue", "notification")
	v.SetDefault("rabbitmq.exchange", "polymarket")
	v.SetDefault("rabbitmq.heartbeat_routing_key", "service.heartbeat.polymarket-mm")
	v.SetDefault("rabbitmq.heartbeat_ttl", 30*time.Second)
	v.SetDefault("rabbitmq.publish_timeout", 5*time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.audit_topic", "botcontrol.audit")

	v.SetDefault("tracing.exporter", "none")
}

// LoadConfig loads the application configuration.
// Precedence: environment, then config.yaml, then defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/botcontrol")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	config := &Config{
		Environment: v.GetString("environment"),
		Version:     v.GetString("version"),
		LogLevel:    v.GetString("log_level"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			FrontendURL:     v.GetString("server.frontend_url"),
			LoginPerMinute:  v.GetInt("server.login_per_minute"),
		},
		Mongo: MongoConfig{
			URI:               v.GetString("mongo.uri"),
			Database:          v.GetString("mongo.database"),
			MarketsCollection: v.GetString("mongo.markets_collection"),
			UsersCollection:   v.GetString("mongo.users_collection"),
			ConnectTimeout:    v.GetDuration("mongo.connect_timeout"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                 v.GetString("rabbitmq.url"),
			NotificationQueue:   v.GetString("rabbitmq.notification_queue"),
			Exchange:            v.GetString("rabbitmq.exchange"),
			HeartbeatRoutingKey: v.GetString("rabbitmq.heartbeat_routing_key"),
			HeartbeatTTL:        v.GetDuration("rabbitmq.heartbeat_ttl"),
			PublishTimeout:      v.GetDuration("rabbitmq.publish_timeout"),
		},
	}

	config.Redis.Address = v.GetString("redis.address")
	config.Redis.Password = v.GetString("redis.password")
	config.Redis.DB = v.GetInt("redis.db")
	config.Redis.StatsTTL = v.GetDuration("redis.stats_ttl")

	config.JWT.Secret = v.GetString("jwt.secret")
	config.JWT.ExpirationHours = v.GetInt("jwt.expiration_hours")

	// KAFKA_BROKERS arrives as a comma separated string
	for _, broker := range v.GetStringSlice("kafka.brokers") {
		for _, b := range strings.Split(broker, ",") {
			if b = strings.TrimSpace(b); b != "" {
				config.Kafka.Brokers = append(config.Kafka.Brokers, b)
			}
		}
	}
	config.Kafka.AuditTopic = v.GetString("kafka.audit_topic")
	config.Tracing.Exporter = v.GetString("tracing.exporter")

	return config
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret must not be empty")
	}
	if c.IsProduction() && c.JWT.Secret == placeholderSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.JWT.ExpirationHours <= 0 {
		return fmt.Errorf("invalid jwt expiration: %d hours", c.JWT.ExpirationHours)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return errors.New("mongo uri and database are required")
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	default:
		return fmt.Errorf("unknown tracing exporter: %q", c.Tracing.Exporter)
	}
	if c.RabbitMQ.HeartbeatTTL <= 0 {
		return fmt.Errorf("invalid heartbeat ttl: %s", c.RabbitMQ.HeartbeatTTL)
	}
	return nil
}
