package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func newTestProducer(w messageWriter) *Producer {
	p := NewProducer(logger.NewNopLogger(), &cfg.KafkaCfg{Brokers: []string{"localhost:9092"}, Topic: domain.EventRunCompleted})
	p.writer = w
	p.now = func() time.Time { return time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC) }
	return p
}

func sampleReport() *domain.RunReport {
	return &domain.RunReport{
		RunID:          "run-1",
		OrganisationID: "org-9",
		SinkID:         "idx",
		Status:         domain.RunPartial,
		StartedAt:      time.Date(2025, 5, 1, 9, 59, 0, 0, time.UTC),
		FinishedAt:     time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		Produce: &domain.StageReport{Total: 2, Succeeded: 1, Dropped: []domain.Drop{
			{Position: 2, Attempts: 1, Reason: "model crashed"},
		}},
		Deliver:   &domain.StageReport{Total: 1, Succeeded: 1},
		Delivered: 1,
	}
}

func TestProducer_Report(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Report(context.Background(), sampleReport()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("org-9"), w.msgs[0].Key)

	var event structpb.Struct
	require.NoError(t, proto.Unmarshal(w.msgs[0].Value, &event))
	fields := event.AsMap()
	assert.Equal(t, domain.EventRunCompleted, fields["event_type"])
	assert.Equal(t, "2025-05-01T10:00:00Z", fields["event_timestamp"])
	assert.Equal(t, "partial", fields["status"])
	assert.Equal(t, float64(1), fields["delivered"])

	produce := fields["produce"].(map[string]any)
	assert.Equal(t, float64(2), produce["total"])
	dropped := produce["dropped"].([]any)
	require.Len(t, dropped, 1)
	assert.Equal(t, "model crashed", dropped[0].(map[string]any)["reason"])
}

func TestProducer_ReportAbortedRun(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Report(context.Background(), &domain.RunReport{RunID: "r", Status: domain.RunAborted}))

	var event structpb.Struct
	require.NoError(t, proto.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, float64(0), event.AsMap()["deliver"].(map[string]any)["total"])
}

func TestProducer_ReportWriteError(t *testing.T) {
	p := newTestProducer(&fakeWriter{err: errors.New("broker down")})

	err := p.Report(context.Background(), sampleReport())
	assert.ErrorContains(t, err, "broker down")
}
