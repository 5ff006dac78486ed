package qdrant

import (
	"context"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/pkg/clients"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// EmbeddingRepo репозиторий для работы с embedding-векторами в Qdrant
type EmbeddingRepo struct {
	client *clients.QdrantClient
}

func NewEmbeddingRepo(client *clients.QdrantClient) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
	}
}

// Upsert сохраняет или обновляет embedding-векторы в коллекции Qdrant, создавая её при необходимости.
// Вызов ждёт применения изменений, чтобы успешный ответ означал сохранённый батч.
func (q *EmbeddingRepo) Upsert(ctx context.Context, collection string, artifacts []domain.Artifact) error {
	if err := clients.EnsureCollection(ctx, q.client, collection); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	wait := true
	_, err := q.client.Client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         toPoints(artifacts),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func toPoints(artifacts []domain.Artifact) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, 0, len(artifacts))
	for _, artifact := range artifacts {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(artifact.ID),
			Vectors: qdrant.NewVectors(artifact.Vector...),
			Payload: qdrant.NewValueMap(artifact.Payload()),
		})
	}

	return points
}
