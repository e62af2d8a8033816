package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

// Producer implements domain.ResultPublisher by producing run reports to a
// Kafka topic for downstream ingestion.
type Producer struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

// NewProducer creates a Kafka report publisher.
func NewProducer(brokerAddress, topic string, logger *logrus.Logger) (*Producer, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerAddress),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: time.Second * 10,
		RequiredAcks: kafka.RequireOne,
	}
	logger.WithFields(logrus.Fields{"broker": brokerAddress, "topic": topic}).Info("kafka report publisher initialized")
	return &Producer{writer: writer, logger: logger}, nil
}

// PublishRunReport produces one run report keyed by its channel id.
func (p *Producer) PublishRunReport(ctx context.Context, report domain.Report) error {
	value, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(report.Config.ChannelID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	p.logger.WithField("channel", report.Config.ChannelID).Debug("run report published")
	return nil
}

// Close closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
