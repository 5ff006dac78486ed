package usecase

import (
	"context"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
)

type EmbeddingRepository interface {
	Upsert(ctx context.Context, collection string, artifacts []domain.Artifact) error
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Delete(ctx context.Context, key string) error
}

// EmbeddingCacheRepository хранит ранее полученные эмбеддинги по хэшу содержимого.
type EmbeddingCacheRepository interface {
	Get(ctx context.Context, key string) (*EmbedRes, error)
	Set(ctx context.Context, key string, res *EmbedRes) error
}

// RunRepository — журнал запусков. Create и CreateDrops выполняются в транзакции из контекста.
type RunRepository interface {
	Create(ctx context.Context, report *domain.RunReport) error
	CreateDrops(ctx context.Context, runID string, stage domain.Stage, drops []domain.Drop) error
	GetByRunID(ctx context.Context, runID string) (*domain.RunReport, error)
}

// OutboxRepository — таблица исходящих событий. Create выполняется в транзакции из контекста.
type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
	Release(ctx context.Context, id int64, status OutboxStatus) error
}
