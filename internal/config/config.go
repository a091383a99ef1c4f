package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the agent console.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	Version  string `envconfig:"VERSION" default:"0.1.0"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// APIKeys guards the HTTP API. Empty leaves it open.
	APIKeys []string `envconfig:"API_KEYS"`

	Store     StoreConfig
	Remote    RemoteConfig
	Gemini    GeminiConfig
	Chat      ChatConfig
	Eval      EvalConfig
	Kafka     KafkaConfig
	Notify    NotifyConfig
	Retention RetentionConfig
	Telemetry TelemetryConfig
}

type StoreConfig struct {
	// Driver is one of file, sqlite, memory.
	Driver   string `envconfig:"DRIVER" default:"file"`
	Location string `envconfig:"LOCATION"`
}

// RemoteConfig seeds the connection settings slot the first time the
// console starts. Settings saved through the API take precedence.
type RemoteConfig struct {
	BaseURL string `envconfig:"BASE_URL"`
	APIKey  string `envconfig:"API_KEY"`
}

type GeminiConfig struct {
	APIKey     string  `envconfig:"API_KEY"`
	JudgeModel string  `envconfig:"JUDGE_MODEL" default:"gemini-2.5-flash"`
	RPS        float64 `envconfig:"RPS" default:"2"`
	Burst      int     `envconfig:"BURST" default:"2"`
}

type ChatConfig struct {
	// Backend selects the chat generator: gemini or remote.
	Backend  string `envconfig:"BACKEND" default:"gemini"`
	Language string `envconfig:"LANGUAGE" default:"English"`
	// RemoteSessionCache bounds the chat→remote session map of the remote backend.
	RemoteSessionCache int `envconfig:"REMOTE_SESSION_CACHE" default:"256"`
}

type EvalConfig struct {
	// Workers is the number of cases run at once. 1 keeps suites sequential.
	Workers int `envconfig:"WORKERS" default:"1"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"BROKERS"`
	Topic   string   `envconfig:"TOPIC" default:"console.eval-runs"`
}

// NotifyConfig posts completed runs to a webhook when WebhookURL is set.
type NotifyConfig struct {
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
}

// RetentionConfig expires evaluation runs. Days of 0 keeps runs forever.
type RetentionConfig struct {
	Days       int           `envconfig:"DAYS" default:"0"`
	Interval   time.Duration `envconfig:"INTERVAL" default:"1h"`
	ArchiveDir string        `envconfig:"ARCHIVE_DIR"`
	// Archive writes expired runs to ArchiveDir before purging them.
	Archive  bool `envconfig:"ARCHIVE" default:"true"`
	Compress bool `envconfig:"COMPRESS" default:"true"`
}

type TelemetryConfig struct {
	Enabled      bool   `envconfig:"ENABLED" default:"false"`
	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT" default:"localhost:4317"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"agent-console"`
	// SampleRatio is the fraction of new traces recorded, 0 to 1.
	SampleRatio float64 `envconfig:"SAMPLE_RATIO" default:"1"`
	// Insecure sends spans without TLS, for a collector on localhost.
	Insecure bool `envconfig:"INSECURE" default:"true"`
}

// Load reads configuration from the environment (CONSOLE_* variables),
// after loading an optional .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CONSOLE", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Eval.Workers < 1 {
		cfg.Eval.Workers = 1
	}
	return &cfg, nil
}
