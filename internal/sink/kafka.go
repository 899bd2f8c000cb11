package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"northstar/internal/ledger"
)

// Kafka produces entries onto a topic, keyed by entry hash so downstream
// consumers can dedupe on redelivery.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects to the brokers and ensures the topic exists. A topic
// that already exists is not an error.
func NewKafka(ctx context.Context, brokers []string, topic string, partitions int32) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, partitions, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}

	return &Kafka{client: client, topic: topic}, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Deliver(ctx context.Context, entry ledger.Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", entry.EntryID, err)
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(entry.Hash),
		Value: raw,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (k *Kafka) Close() {
	k.client.Close()
}
