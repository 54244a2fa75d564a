package kafka

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// DefaultFlushTimeout bounds the final flush on producer close.
const DefaultFlushTimeout = 15 * time.Second

// ProducerConfig holds the configuration for the Kafka deployment sink.
type ProducerConfig struct {
	BootstrapServers  string         `env:"KAFKA_BOOTSTRAP_SERVERS" envDefault:"localhost:9092"` // Kafka broker addresses
	Topic             string         `env:"KAFKA_TOPIC"             envDefault:"deployments"`    // Topic receiving deployment messages
	NumPartitions     int            `env:"KAFKA_NUM_PARTITIONS"    envDefault:"1"`              // Partition count used when creating the topic
	ReplicationFactor int            `env:"KAFKA_REPLICATION_FACTOR" envDefault:"1"`             // Replication factor used when creating the topic
	FlushTimeout      *time.Duration `env:"KAFKA_FLUSH_TIMEOUT"     envDefault:"15s"`            // Flush timeout on close
	EnableLogs        bool           `env:"KAFKA_ENABLE_LOGS"       envDefault:"false"`          // Enable librdkafka client logs
}

// LoadProducerConfig loads producer configuration from environment variables.
func LoadProducerConfig() (ProducerConfig, error) {
	var cfg ProducerConfig
	if err := env.Parse(&cfg); err != nil {
		return ProducerConfig{}, fmt.Errorf("parse producer config: %w", err)
	}
	return cfg, nil
}

// WithDefaults returns a copy of the config with default values filled in for
// any nil pointer fields. The original config is not mutated.
func (c ProducerConfig) WithDefaults() ProducerConfig {
	if c.FlushTimeout == nil {
		timeout := DefaultFlushTimeout
		c.FlushTimeout = &timeout
	}
	return c
}

// ConfigMap renders the config as a librdkafka configuration map.
func (c ProducerConfig) ConfigMap() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":      c.BootstrapServers,
		"acks":                   "all",
		"go.logs.channel.enable": c.EnableLogs,
	}
}

// TopicConfig renders the topic settings for EnsureTopic.
func (c ProducerConfig) TopicConfig() TopicConfig {
	return TopicConfig{
		Name:              c.Topic,
		NumPartitions:     c.NumPartitions,
		ReplicationFactor: c.ReplicationFactor,
	}
}

// SASLConfig holds SASL authentication settings for Kafka clients. An empty
// username disables SASL entirely.
type SASLConfig struct {
	Username         string `env:"KAFKA_SASL_USERNAME"`
	Password         string `env:"KAFKA_SASL_PASSWORD"`
	Mechanism        string `env:"KAFKA_SASL_MECHANISM"     envDefault:"SCRAM-SHA-512"` // SCRAM-SHA-256, SCRAM-SHA-512, or PLAIN
	SecurityProtocol string `env:"KAFKA_SECURITY_PROTOCOL"  envDefault:"SASL_SSL"`      // SASL_SSL or SASL_PLAINTEXT
}

// Enabled reports whether SASL authentication should be applied.
func (s SASLConfig) Enabled() bool {
	return s.Username != ""
}

// ApplyToConfigMap sets the SASL properties on a librdkafka config map when enabled.
func (s SASLConfig) ApplyToConfigMap(cm *kafka.ConfigMap) {
	if !s.Enabled() {
		return
	}
	_ = cm.SetKey("security.protocol", s.SecurityProtocol)
	_ = cm.SetKey("sasl.mechanisms", s.Mechanism)
	_ = cm.SetKey("sasl.username", s.Username)
	_ = cm.SetKey("sasl.password", s.Password)
}
