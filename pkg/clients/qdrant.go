package clients

import (
	"context"
	"fmt"
	"sync"
	"time"

	config "github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ensureCollectionTimeout = 30 * time.Second

// collectionManager — часть API Qdrant, нужная для создания коллекций.
type collectionManager interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
}

// QdrantClient — клиент Qdrant с памятью о коллекциях, существование которых уже проверено.
// Коллекция соответствует идентификатору хранилища (sink id) и создаётся при первом обращении.
type QdrantClient struct {
	Client *qdrant.Client
	cfg    *config.QdrantCfg

	collections collectionManager
	ensure      singleflight.Group

	mu    sync.Mutex
	known map[string]struct{}
}

func NewQdrantClient(cfg *config.QdrantCfg) (*QdrantClient, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client:      qdrantClient,
		cfg:         cfg,
		collections: qdrantClient,
		known:       make(map[string]struct{}),
	}, nil
}

// EnsureCollection создаёт коллекцию с косинусной метрикой, если её ещё нет.
// Параллельные вызовы для одного имени ждут одну проверку и одно создание.
// Ожидание ограничено ctx вызывающего, само создание доводится до конца независимо от него.
func EnsureCollection(ctx context.Context, client *QdrantClient, name string) error {
	if client.isKnown(name) {
		return nil
	}

	ch := client.ensure.DoChan(name, func() (any, error) {
		ensureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ensureCollectionTimeout)
		defer cancel()
		return nil, client.createIfMissing(ensureCtx, name)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *QdrantClient) createIfMissing(ctx context.Context, name string) error {
	if c.isKnown(name) {
		return nil
	}

	exists, err := c.collections.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		err := c.collections.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     c.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}

	c.mu.Lock()
	c.known[name] = struct{}{}
	c.mu.Unlock()

	return nil
}

func (c *QdrantClient) isKnown(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.known[name]
	return ok
}
