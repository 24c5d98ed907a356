// Package notify publishes analyses and winner promotions to Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/headline-goat/split-goat/internal/engine"
	"github.com/headline-goat/split-goat/internal/store"
)

// Message types carried in the "type" header and the envelope.
const (
	TypeAnalysisRecorded = "analysis.recorded"
	TypeWinnerPromoted   = "winner.promoted"
)

// messageWriter is the part of *kafka.Writer the notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	Type       string          `json:"type"`
	CampaignID string          `json:"campaign_id"`
	SentAt     time.Time       `json:"sent_at"`
	Payload    json.RawMessage `json:"payload"`
}

type analysisPayload struct {
	ResultID          string  `json:"result_id"`
	ControlVariant    string  `json:"control_variant"`
	TestVariant       string  `json:"test_variant"`
	ControlRate       float64 `json:"control_rate"`
	TestRate          float64 `json:"test_rate"`
	LiftPercentage    float64 `json:"lift_percentage"`
	ZScore            float64 `json:"z_score"`
	PValue            float64 `json:"p_value"`
	IsSignificant     bool    `json:"is_significant"`
	TotalParticipants int64   `json:"total_participants"`
	RecommendedAction string  `json:"recommended_action"`
	RecommendedWinner string  `json:"recommended_winner,omitempty"`
}

type promotionPayload struct {
	CampaignName string   `json:"campaign_name"`
	Winner       string   `json:"winner"`
	TemplateID   string   `json:"template_id"`
	AutoPromote  bool     `json:"auto_promote"`
	Trigger      string   `json:"trigger"`
	PValue       *float64 `json:"p_value,omitempty"`
	PromotedAt   string   `json:"promoted_at"`
}

// KafkaNotifier implements engine.Notifier. Messages are keyed by campaign
// id so every message for one campaign lands on the same partition.
type KafkaNotifier struct {
	writer messageWriter
	logger *zap.Logger
	now    func() time.Time
}

var _ engine.Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier creates a notifier writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string, logger *zap.Logger) *KafkaNotifier {
	return newKafkaNotifier(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}, logger)
}

func newKafkaNotifier(w messageWriter, logger *zap.Logger) *KafkaNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaNotifier{writer: w, logger: logger, now: time.Now}
}

func (n *KafkaNotifier) ResultRecorded(ctx context.Context, r *store.StatisticalResult) error {
	return n.send(ctx, TypeAnalysisRecorded, r.CampaignID, analysisPayload{
		ResultID:          r.ID,
		ControlVariant:    r.ControlVariant,
		TestVariant:       r.TestVariant,
		ControlRate:       r.ControlRate,
		TestRate:          r.TestRate,
		LiftPercentage:    r.LiftPercentage,
		ZScore:            r.ZScore,
		PValue:            r.PValue,
		IsSignificant:     r.IsSignificant,
		TotalParticipants: r.TotalParticipants,
		RecommendedAction: string(r.RecommendedAction),
		RecommendedWinner: r.RecommendedWinner,
	})
}

func (n *KafkaNotifier) WinnerPromoted(ctx context.Context, p engine.Promotion) error {
	return n.send(ctx, TypeWinnerPromoted, p.CampaignID, promotionPayload{
		CampaignName: p.CampaignName,
		Winner:       p.Winner,
		TemplateID:   p.TemplateID,
		AutoPromote:  p.AutoPromote,
		Trigger:      p.Trigger,
		PValue:       p.PValue,
		PromotedAt:   p.At.UTC().Format(time.RFC3339),
	})
}

func (n *KafkaNotifier) send(ctx context.Context, msgType, campaignID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{
		Type:       msgType,
		CampaignID: campaignID,
		SentAt:     n.now().UTC(),
		Payload:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s envelope: %w", msgType, err)
	}

	msg := kafka.Message{
		Key:     []byte(campaignID),
		Value:   data,
		Headers: []kafka.Header{{Key: "type", Value: []byte(msgType)}},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msgType, err)
	}

	n.logger.Debug("published message", zap.String("type", msgType), zap.String("campaign_id", campaignID))
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
