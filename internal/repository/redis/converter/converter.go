package converter

import (
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
)

type EmbeddingConverter interface {
	ToRedisModel(entity *usecase.EmbedRes, cachedAt time.Time) *EmbeddingRedisModel
	ToUseCase(model *EmbeddingRedisModel) *usecase.EmbedRes
}

type EmbeddingConverterImpl struct{}

func NewEmbeddingConverterImpl() *EmbeddingConverterImpl {
	return &EmbeddingConverterImpl{}
}

func (EmbeddingConverterImpl) ToRedisModel(entity *usecase.EmbedRes, cachedAt time.Time) *EmbeddingRedisModel {
	if entity == nil {
		return nil
	}

	return &EmbeddingRedisModel{
		Vector:       entity.Vector,
		ModelVersion: entity.ModelVersion,
		CachedAt:     ConvertTime(cachedAt),
	}
}

func (EmbeddingConverterImpl) ToUseCase(model *EmbeddingRedisModel) *usecase.EmbedRes {
	if model == nil {
		return nil
	}

	return usecase.NewEmbedRes(model.Vector, model.ModelVersion)
}

func ConvertTime(t time.Time) time.Time {
	return t.UTC()
}
