package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	Limits    LimitsConfig    `envPrefix:"LIMITS_"`
	Kafka     KafkaConfig     `envPrefix:"KAFKA_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Assistant AssistantConfig `envPrefix:"ASSISTANT_"`
}

type ServerConfig struct {
	Addr           string        `env:"ADDR" envDefault:"0.0.0.0:8080"`
	SocketPath     string        `env:"SOCKET_PATH" envDefault:"/ws"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	PingInterval   time.Duration `env:"PING_INTERVAL" envDefault:"25s"`
	PongTimeout    time.Duration `env:"PONG_TIMEOUT" envDefault:"60s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE" envDefault:"65536"`
}

type DatabaseConfig struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"chatcore"`
}

// LimitsConfig holds the token bucket settings for the three limiter banks.
type LimitsConfig struct {
	MessageBurst  int           `env:"MESSAGE_BURST" envDefault:"30"`
	MessageWindow time.Duration `env:"MESSAGE_WINDOW" envDefault:"60s"`
	TypingBurst   int           `env:"TYPING_BURST" envDefault:"10"`
	TypingWindow  time.Duration `env:"TYPING_WINDOW" envDefault:"10s"`
	ConnectBurst  int           `env:"CONNECT_BURST" envDefault:"5"`
	ConnectWindow time.Duration `env:"CONNECT_WINDOW" envDefault:"300s"`
}

type KafkaConfig struct {
	Enabled bool     `env:"ENABLED" envDefault:"false"`
	Brokers []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic   string   `env:"TOPIC" envDefault:"chat-events"`
	GroupID string   `env:"GROUP_ID" envDefault:"chat-core"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET,required"`
}

// AssistantConfig points at the external AI responder. An empty WebhookURL
// disables the extension point entirely.
type AssistantConfig struct {
	WebhookURL string        `env:"WEBHOOK_URL"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
