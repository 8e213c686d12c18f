package repository

import (
	"context"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/repository"
	pkgkafka "StratGate/pkg/kafka"
)

// KafkaPublisher emits completed validation reports as events, keyed by
// symbol (portfolio events by run ID) so downstream consumers see each
// symbol's reports in order.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

type reportEvent struct {
	Kind      string                  `json:"kind"` // "symbol" | "portfolio"
	RunID     string                  `json:"run_id"`
	Symbol    *models.SymbolResult    `json:"symbol,omitempty"`
	Portfolio *models.PortfolioResult `json:"portfolio,omitempty"`
}

func (p *KafkaPublisher) PublishSymbolResult(ctx context.Context, runID string, r models.SymbolResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.Symbol), reportEvent{
		Kind:   "symbol",
		RunID:  runID,
		Symbol: &r,
	})
}

func (p *KafkaPublisher) PublishPortfolio(ctx context.Context, r models.PortfolioResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.RunID), reportEvent{
		Kind:      "portfolio",
		RunID:     r.RunID,
		Portfolio: &r,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
