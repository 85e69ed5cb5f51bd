package kafka

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
)

// Producer owns the async Sarama producer shared by the audit and notification publishers.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
	done     chan struct{}
}

func newSaramaConfig(id string) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_5_0_0
	sc.ClientID = id

	// Idempotent writes require acks from all in-sync replicas and one in-flight request.
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	sc.Producer.Retry.Max = 5
	sc.Producer.Retry.Backoff = 200 * time.Millisecond

	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Flush.Frequency = 50 * time.Millisecond
	sc.Producer.Flush.Messages = 64
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true
	// Keyed by user id so one account's events stay ordered.
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	sc.Metadata.Retry.Max = 3
	sc.Metadata.Retry.Backoff = 250 * time.Millisecond
	return sc
}

// NewProducer connects to the configured brokers.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}

	async, err := sarama.NewAsyncProducer(cfg.Brokers, newSaramaConfig(clientID(cfg.TopicPrefix)))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		producer: async,
		logger:   logger,
		cfg:      cfg,
		done:     make(chan struct{}),
	}
	go p.logFailures()

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)
	return p, nil
}

func clientID(prefix string) string {
	if prefix == "" {
		return "auth-service"
	}
	return prefix + "-auth-service"
}

// logFailures reports delivery failures. Message values are never logged since
// notification payloads carry raw credentials.
func (p *Producer) logFailures() {
	for {
		select {
		case perr, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			if perr == nil {
				continue
			}
			fields := []zap.Field{zap.Error(perr.Err)}
			if perr.Msg != nil {
				fields = append(fields, zap.String("topic", perr.Msg.Topic))
			}
			p.logger.Error("kafka delivery failed", fields...)
		case <-p.done:
			return
		}
	}
}

func (p *Producer) input() chan<- *sarama.ProducerMessage {
	return p.producer.Input()
}

// Close flushes buffered messages and stops the producer.
func (p *Producer) Close() error {
	close(p.done)
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	p.logger.Info("kafka producer closed")
	return nil
}

// TopicName prefixes name with the configured topic prefix once.
func (p *Producer) TopicName(name string) string {
	if p.cfg.TopicPrefix == "" {
		return name
	}
	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + name
}
