package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/deploytrack/deploytrack/pkg/deployment"
	"github.com/deploytrack/deploytrack/pkg/kafka"
	"github.com/deploytrack/deploytrack/pkg/metrics"
)

const kafkaSinkName = "kafka"

// Kafka publishes deployments as JSON messages, keyed by block number so all
// deployments of a block land on the same partition.
type Kafka struct {
	producer     *kafka.Producer
	topic        string
	flushTimeout time.Duration
	metrics      *metrics.Metrics
}

var _ Sink = (*Kafka)(nil)

// NewKafka creates a Kafka sink on top of an existing producer. The sink owns
// the producer and closes it with the configured flush timeout.
func NewKafka(producer *kafka.Producer, topic string, flushTimeout time.Duration, m *metrics.Metrics) *Kafka {
	return &Kafka{
		producer:     producer,
		topic:        topic,
		flushTimeout: flushTimeout,
		metrics:      m,
	}
}

func (k *Kafka) Write(ctx context.Context, deployments []*deployment.Deployment) error {
	if len(deployments) == 0 {
		return nil
	}
	start := time.Now()

	for _, d := range deployments {
		value, err := d.Marshal()
		if err != nil {
			k.metrics.RecordSinkWrite(kafkaSinkName, err, time.Since(start).Seconds())
			return fmt.Errorf("serialize deployment %s: %w", d.ContractAddress.Hex(), err)
		}

		err = k.producer.Produce(ctx, kafka.Msg{
			Topic: k.topic,
			Value: value,
			Key:   []byte(strconv.FormatUint(d.BlockNumber, 10)),
		})
		if err != nil {
			k.metrics.RecordSinkWrite(kafkaSinkName, err, time.Since(start).Seconds())
			return fmt.Errorf("produce deployment %s: %w", d.ContractAddress.Hex(), err)
		}
	}

	k.metrics.RecordSinkWrite(kafkaSinkName, nil, time.Since(start).Seconds())
	return nil
}

func (k *Kafka) Close() error {
	k.producer.Close(k.flushTimeout)
	return nil
}
