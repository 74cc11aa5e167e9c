package changefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/depository/internal/core"
	"github.com/rzpsarthak13/depository/internal/registry"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaFeed publishes changes to a topic keyed by table name and consumes
// them through a consumer group. Offsets are committed once a message has
// been decoded.
type KafkaFeed struct {
	writer      messageWriter
	reader      messageReader
	topic       string
	readTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	size   int // approximate; Kafka has no queue length
	closed bool
}

var _ core.ChangeFeed = (*KafkaFeed)(nil)

// NewKafkaFeed builds a writer and a group reader for config.Topic.
func NewKafkaFeed(config registry.KafkaConfig, logger *slog.Logger) (*KafkaFeed, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if config.GroupID == "" {
		config.GroupID = "depository-drainer"
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{}, // same table, same partition, so order per table holds
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		BatchBytes:   int64(config.MaxMessageBytes),
		MaxAttempts:  3,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
		MaxWait:     config.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	return newKafkaFeed(writer, reader, config.Topic, config.ReadTimeout, logger), nil
}

func newKafkaFeed(writer messageWriter, reader messageReader, topic string, readTimeout time.Duration, logger *slog.Logger) *KafkaFeed {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	return &KafkaFeed{
		writer:      writer,
		reader:      reader,
		topic:       topic,
		readTimeout: readTimeout,
		logger:      logger,
	}
}

func (f *KafkaFeed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *KafkaFeed) Publish(ctx context.Context, change *core.Change) error {
	if f.isClosed() {
		return ErrFeedClosed
	}
	if err := validateChange(change); err != nil {
		return err
	}

	data, err := encodeChange(change)
	if err != nil {
		return err
	}

	message := kafka.Message{
		Key:   []byte(change.Table),
		Value: data,
		Time:  change.Timestamp,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(change.Operation)},
			{Key: "table", Value: []byte(change.Table)},
		},
	}

	start := time.Now()
	if err := f.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write change to kafka topic %s: %w", f.topic, err)
	}

	f.mu.Lock()
	f.size++
	f.mu.Unlock()

	f.logger.Debug("produced change",
		"topic", f.topic,
		"table", change.Table,
		"operation", change.Operation,
		"bytes", len(data),
		"duration", time.Since(start),
	)
	return nil
}

// Consume reads up to max messages, giving up on the batch after the read
// timeout passes without a new message.
func (f *KafkaFeed) Consume(ctx context.Context, max int) ([]*core.Change, error) {
	if f.isClosed() {
		return nil, ErrFeedClosed
	}
	if max <= 0 {
		max = 100
	}

	changes := make([]*core.Change, 0, max)
	for len(changes) < max {
		readCtx, cancel := context.WithTimeout(ctx, f.readTimeout)
		message, err := f.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return changes, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return changes, fmt.Errorf("failed to read from kafka topic %s: %w", f.topic, err)
		}

		change, err := decodeChange(message.Value)
		if err != nil {
			f.logger.Warn("skipping malformed change",
				"partition", message.Partition,
				"offset", message.Offset,
				"error", err,
			)
		} else {
			changes = append(changes, change)
		}

		if err := f.reader.CommitMessages(ctx, message); err != nil {
			f.logger.Warn("failed to commit offset",
				"partition", message.Partition,
				"offset", message.Offset,
				"error", err,
			)
		}
	}

	if len(changes) > 0 {
		f.mu.Lock()
		f.size -= len(changes)
		if f.size < 0 {
			f.size = 0
		}
		f.mu.Unlock()
	}
	return changes, nil
}

// Size returns the number of changes this process produced and has not yet consumed.
func (f *KafkaFeed) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

func (f *KafkaFeed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	return errors.Join(f.writer.Close(), f.reader.Close())
}

// KafkaFactory creates Kafka-backed feeds.
type KafkaFactory struct{}

func (KafkaFactory) Type() string {
	return "kafka"
}

func (KafkaFactory) Validate(config registry.FeedConfig) error {
	k := config.Kafka
	if len(k.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}
	if k.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	if k.GroupID == "" {
		return fmt.Errorf("kafka group_id is required")
	}
	switch k.RequiredAcks {
	case -1, 0, 1:
	default:
		return fmt.Errorf("kafka required_acks must be -1, 0 or 1, got: %d", k.RequiredAcks)
	}
	if k.BatchSize < 0 || k.MaxMessageBytes < 0 || k.MinBytes < 0 || k.MaxBytes < 0 {
		return fmt.Errorf("kafka sizes must be non-negative")
	}
	if k.MaxBytes > 0 && k.MinBytes > k.MaxBytes {
		return fmt.Errorf("kafka min_bytes (%d) exceeds max_bytes (%d)", k.MinBytes, k.MaxBytes)
	}
	return nil
}

func (KafkaFactory) Create(_ context.Context, config registry.FeedConfig, logger *slog.Logger) (core.ChangeFeed, error) {
	feed, err := NewKafkaFeed(config.Kafka, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka change feed: %w", err)
	}
	logger.Info("kafka change feed ready",
		"brokers", config.Kafka.Brokers,
		"topic", config.Kafka.Topic,
		"group", config.Kafka.GroupID,
	)
	return feed, nil
}

func init() {
	RegisterFactory(KafkaFactory{})
}
