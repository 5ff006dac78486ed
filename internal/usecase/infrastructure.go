package usecase

import (
	"context"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
)

// Embedder — внешняя операция получения эмбеддинга по байтам изображения.
// Метаданные передаются только для чтения.
type Embedder interface {
	Embed(ctx context.Context, req *EmbedReq) (*EmbedRes, error)
}

// Sink — внешнее хранилище, принимающее батчи артефактов.
type Sink interface {
	Deliver(ctx context.Context, batch domain.Batch, sinkID string) error
}

// ImagesInfra архивирует исходные изображения до векторизации.
type ImagesInfra interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) (*UploadImagesRes, error)
	CleanupImages(keys []string)
}

// ImageValidator проверяет загруженный файл и возвращает определённый MIME-тип.
type ImageValidator interface {
	Validate(data []byte) (string, error)
}

// MessageProducer отправляет готовые сообщения в брокер.
type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}

// RunEventEncoder кодирует сводку запуска в тело события.
type RunEventEncoder interface {
	GetPayloadBytes(report *domain.RunReport) ([]byte, error)
}
