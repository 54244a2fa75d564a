package kafka

import (
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerConfig_WithDefaults_EmptyConfig(t *testing.T) {
	cfg := ProducerConfig{}.WithDefaults()

	require.NotNil(t, cfg.FlushTimeout, "FlushTimeout should not be nil")
	assert.Equal(t, DefaultFlushTimeout, *cfg.FlushTimeout)
}

func TestProducerConfig_WithDefaults_KeepsCustomValues(t *testing.T) {
	customFlush := 30 * time.Second

	cfg := ProducerConfig{FlushTimeout: &customFlush}.WithDefaults()

	require.NotNil(t, cfg.FlushTimeout)
	assert.Equal(t, customFlush, *cfg.FlushTimeout, "FlushTimeout should keep custom value")
}

func TestProducerConfig_ConfigMap(t *testing.T) {
	cfg := ProducerConfig{
		BootstrapServers: "broker-1:9092,broker-2:9092",
		EnableLogs:       true,
	}

	cm := cfg.ConfigMap()

	servers, err := cm.Get("bootstrap.servers", "")
	require.NoError(t, err)
	assert.Equal(t, "broker-1:9092,broker-2:9092", servers)

	logs, err := cm.Get("go.logs.channel.enable", false)
	require.NoError(t, err)
	assert.Equal(t, true, logs)
}

func TestProducerConfig_TopicConfig(t *testing.T) {
	cfg := ProducerConfig{
		Topic:             "deployments",
		NumPartitions:     3,
		ReplicationFactor: 2,
	}

	tc := cfg.TopicConfig()
	assert.Equal(t, "deployments", tc.Name)
	assert.Equal(t, 3, tc.NumPartitions)
	assert.Equal(t, 2, tc.ReplicationFactor)
	require.NoError(t, tc.Validate())
}

func TestTopicConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      TopicConfig
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid",
			config:  TopicConfig{Name: "deployments", NumPartitions: 1, ReplicationFactor: 1},
			wantErr: false,
		},
		{
			name:        "empty name",
			config:      TopicConfig{NumPartitions: 1, ReplicationFactor: 1},
			wantErr:     true,
			errContains: "topic name",
		},
		{
			name:        "zero partitions",
			config:      TopicConfig{Name: "deployments", ReplicationFactor: 1},
			wantErr:     true,
			errContains: "partitions",
		},
		{
			name:        "zero replication factor",
			config:      TopicConfig{Name: "deployments", NumPartitions: 1},
			wantErr:     true,
			errContains: "replication factor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.ErrorContains(t, err, tt.errContains)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSASLConfig_Disabled(t *testing.T) {
	t.Parallel()

	cm := &kafka.ConfigMap{}
	SASLConfig{}.ApplyToConfigMap(cm)

	v, err := cm.Get("security.protocol", "")
	require.NoError(t, err)
	require.Equal(t, "", v)
}

func TestSASLConfig_Applied(t *testing.T) {
	t.Parallel()

	cm := &kafka.ConfigMap{}
	SASLConfig{
		Username:         "scanner",
		Password:         "secret",
		Mechanism:        "SCRAM-SHA-512",
		SecurityProtocol: "SASL_SSL",
	}.ApplyToConfigMap(cm)

	for key, want := range map[string]string{
		"security.protocol": "SASL_SSL",
		"sasl.mechanisms":   "SCRAM-SHA-512",
		"sasl.username":     "scanner",
		"sasl.password":     "secret",
	} {
		v, err := cm.Get(key, "")
		require.NoError(t, err)
		require.Equal(t, want, v, key)
	}
}
