// Package embedcache — кэширующая обёртка над Embedder.
//
// Ключ кэша — sha256 байтов изображения, поэтому повторная загрузка того же файла
// не обращается к ML-сервису. Ошибки кэша не влияют на результат векторизации.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
)

type CachedEmbedder struct {
	next   usecase.Embedder
	cache  usecase.EmbeddingCacheRepository
	logger logger.Logger
}

func NewCachedEmbedder(next usecase.Embedder, cache usecase.EmbeddingCacheRepository, logger logger.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		next:   next,
		cache:  cache,
		logger: logger,
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, req *usecase.EmbedReq) (*usecase.EmbedRes, error) {
	key := Key(req.Data)

	cached, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warnf("embedding cache read failed: %v", err)
	}
	if cached != nil && len(cached.Vector) > 0 {
		c.logger.Debugf("embedding cache hit for %s", req.Metadata.String(domain.MetaFileName))
		return cached, nil
	}

	res, err := c.next.Embed(ctx, req)
	if err != nil {
		return nil, err
	}

	if res != nil && len(res.Vector) > 0 {
		if err := c.cache.Set(context.WithoutCancel(ctx), key, res); err != nil {
			c.logger.Warnf("embedding cache write failed: %v", err)
		}
	}

	return res, nil
}

// Key возвращает ключ кэша для содержимого изображения.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
