package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Producer публикует сводки запусков в Kafka. Ключ сообщения — идентификатор организации,
// поэтому события одной организации попадают в одну партицию.
type Producer struct {
	writer messageWriter
	logger logger.Logger
	cfg    *cfg.KafkaCfg
	now    func() time.Time
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Report публикует событие о завершённом запуске напрямую, без outbox.
func (p *Producer) Report(ctx context.Context, report *domain.RunReport) error {
	value, err := p.GetPayloadBytes(report)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.WriteRawMessage(ctx, usecase.NewWriteRawMessageReq(report.OrganisationID, domain.EventRunCompleted, value)); err != nil {
		return err
	}

	p.logger.Debugf("published %s for run %s", domain.EventRunCompleted, report.RunID)
	return nil
}

// WriteRawMessage отправляет уже закодированное событие.
func (p *Producer) WriteRawMessage(ctx context.Context, req *usecase.WriteRawMessageReq) error {
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(req.Key),
		Value: req.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(req.EventType)},
		},
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// EnsureTopic создаёт топик, если его ещё нет.
func (p *Producer) EnsureTopic(timeout time.Duration) error {
	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(p.cfg.Topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.CreateTopics(kafka.TopicConfig{
			Topic:             p.cfg.Topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", p.cfg.Topic, err))
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, p.cfg.Topic))
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// GetPayloadBytes кодирует событие как protobuf Struct.
func (p *Producer) GetPayloadBytes(report *domain.RunReport) ([]byte, error) {
	event, err := structpb.NewStruct(map[string]any{
		"event_id":        uuid.NewString(),
		"event_type":      domain.EventRunCompleted,
		"event_timestamp": p.now().UTC().Format(time.RFC3339Nano),
		"run_id":          report.RunID,
		"organisation_id": report.OrganisationID,
		"sink_id":         report.SinkID,
		"status":          string(report.Status),
		"reason":          report.Reason,
		"started_at":      report.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at":     report.FinishedAt.UTC().Format(time.RFC3339Nano),
		"delivered":       report.Delivered,
		"produce":         stageToMap(report.Produce),
		"deliver":         stageToMap(report.Deliver),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return proto.Marshal(event)
}

func stageToMap(stage *domain.StageReport) map[string]any {
	if stage == nil {
		return map[string]any{"total": 0, "succeeded": 0, "dropped": []any{}}
	}

	dropped := make([]any, 0, len(stage.Dropped))
	for _, d := range stage.Dropped {
		dropped = append(dropped, map[string]any{
			"position": d.Position,
			"attempts": d.Attempts,
			"reason":   d.Reason,
		})
	}

	return map[string]any{
		"total":     stage.Total,
		"succeeded": stage.Succeeded,
		"dropped":   dropped,
	}
}
