package sink

import (
	"context"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
)

// VectorSink отправляет батчи артефактов в векторное хранилище. Идентификатор хранилища — имя коллекции.
type VectorSink struct {
	repo   usecase.EmbeddingRepository
	logger logger.Logger
}

func NewVectorSink(repo usecase.EmbeddingRepository, logger logger.Logger) *VectorSink {
	return &VectorSink{
		repo:   repo,
		logger: logger,
	}
}

func (s *VectorSink) Deliver(ctx context.Context, batch domain.Batch, sinkID string) error {
	const op = "VectorSink.Deliver"

	if batch.Len() == 0 {
		return nil
	}

	if err := s.repo.Upsert(ctx, sinkID, batch.Artifacts); err != nil {
		return e.Wrap(op, err)
	}

	s.logger.Debugf("%s: upserted %d points into %s", op, batch.Len(), sinkID)
	return nil
}
