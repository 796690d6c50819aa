// Package streaming is the external outbox that publishes finalized chain
// events and job-lifecycle facts to Kafka for downstream consumers (the
// dashboard's live feed, billing, external analytics). An async-producer-
// plus-admin-client shape, trimmed to producer-only since nothing in this
// module consumes its own topics back.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/ciro-network/ciro/internal/logging"
)

var logger = logging.NewModuleLogger(logging.Streaming)

// Config configures the outbox producer.
type Config struct {
	Brokers     []string
	TopicPrefix string
	Replicas    int16
}

// Outbox publishes finalized facts onto Kafka topics named
// "<prefix>-events" and "<prefix>-jobs".
type Outbox struct {
	producer sarama.AsyncProducer
	admin    sarama.ClusterAdmin
	prefix   string
	replicas int16
}

// New connects to brokers and prepares the async producer and admin client.
// Returns a no-op Outbox when brokers is empty, so single-node deployments
// (or tests) can run without standing up Kafka.
func New(cfg Config) (*Outbox, error) {
	if len(cfg.Brokers) == 0 {
		return &Outbox{}, nil
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = false
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Version = sarama.V2_6_0_0

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("new kafka producer: %w", err)
	}
	admin, err := sarama.NewClusterAdmin(cfg.Brokers, saramaCfg)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("new kafka admin: %w", err)
	}

	o := &Outbox{producer: producer, admin: admin, prefix: cfg.TopicPrefix, replicas: cfg.Replicas}
	go o.drainErrors()
	return o, nil
}

func (o *Outbox) drainErrors() {
	for err := range o.producer.Errors() {
		logger.Warn("kafka publish failed", "err", err)
	}
}

func (o *Outbox) ensureTopic(topic string) {
	if o.admin == nil {
		return
	}
	_ = o.admin.CreateTopic(topic, &sarama.TopicDetail{
		NumPartitions:     10,
		ReplicationFactor: o.replicas,
	}, false)
}

func (o *Outbox) publish(topic, key string, v interface{}) error {
	if o.producer == nil {
		return nil
	}
	o.ensureTopic(topic)
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal outbox message: %w", err)
	}
	o.producer.Input() <- &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(data),
	}
	return nil
}

// PublishEvent sends a finalized chain event fact keyed by tx hash so all
// events from the same transaction land on the same partition.
func (o *Outbox) PublishEvent(contract, kind, txHash string, payload json.RawMessage) error {
	return o.publish(o.prefix+"-events", txHash, map[string]interface{}{
		"contract": contract,
		"kind":     kind,
		"tx_hash":  txHash,
		"payload":  payload,
	})
}

// PublishJobFact sends a job-lifecycle fact (assigned/completed/failed),
// keyed by job id.
func (o *Outbox) PublishJobFact(jobID, kind, workerID string) error {
	return o.publish(o.prefix+"-jobs", jobID, map[string]interface{}{
		"job_id":    jobID,
		"kind":      kind,
		"worker_id": workerID,
	})
}

// Close releases the producer and admin client.
func (o *Outbox) Close() error {
	if o.producer != nil {
		o.producer.AsyncClose()
	}
	if o.admin != nil {
		return o.admin.Close()
	}
	return nil
}
