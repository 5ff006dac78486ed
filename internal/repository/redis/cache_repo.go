package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/internal/repository/redis/converter"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/clients"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// CacheRepo хранит эмбеддинги в Redis по хэшу содержимого изображения.
type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.EmbeddingConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.EmbeddingConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// Get возвращает закэшированный эмбеддинг. Промах — (nil, nil).
func (c *CacheRepo) Get(ctx context.Context, key string) (*usecase.EmbedRes, error) {
	data, err := c.client.Client.Get(ctx, embeddingKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, nil // cache miss
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	model, err := unmarshalEmbeddingFromCache(data)
	if err != nil {
		c.logger.Warnf("Redis unmarshal failed, dropping key %s: %v", key, e.Wrap(whereami.WhereAmI(), err))
		if err := c.client.Client.Del(ctx, embeddingKey(key)).Err(); err != nil {
			c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
		}
		return nil, nil
	}

	return c.conv.ToUseCase(model), nil
}

// Set кэширует эмбеддинг с TTL из конфигурации.
func (c *CacheRepo) Set(ctx context.Context, key string, res *usecase.EmbedRes) error {
	data, err := json.Marshal(c.conv.ToRedisModel(res, time.Now()))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, embeddingKey(key), data, c.cfg.EmbeddingTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func unmarshalEmbeddingFromCache(data []byte) (*converter.EmbeddingRedisModel, error) {
	var model converter.EmbeddingRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, err
	}
	if len(model.Vector) == 0 {
		return nil, e.ErrEmptyEmbedding
	}

	return &model, nil
}

// embeddingKey возвращает Redis-ключ для хэша содержимого
func embeddingKey(hash string) string {
	return fmt.Sprintf("embedding:%s", hash)
}
