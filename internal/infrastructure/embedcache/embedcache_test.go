package embedcache

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	data    map[string]*usecase.EmbedRes
	readErr error
}

func (m *memCache) Get(_ context.Context, key string) (*usecase.EmbedRes, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.data[key], nil
}

func (m *memCache) Set(_ context.Context, key string, res *usecase.EmbedRes) error {
	m.data[key] = res
	return nil
}

type countingEmbedder struct {
	calls int
	res   *usecase.EmbedRes
	err   error
}

func (c *countingEmbedder) Embed(context.Context, *usecase.EmbedReq) (*usecase.EmbedRes, error) {
	c.calls++
	return c.res, c.err
}

func embedReq(data string) *usecase.EmbedReq {
	return usecase.NewEmbedReq([]byte(data), "image/png", domain.Metadata{domain.MetaFileName: "image_0.jpg"})
}

func TestCachedEmbedder_HitSkipsNext(t *testing.T) {
	next := &countingEmbedder{res: usecase.NewEmbedRes([]float32{1, 2}, "v1")}
	cache := &memCache{data: map[string]*usecase.EmbedRes{}}
	embedder := NewCachedEmbedder(next, cache, logger.NewNopLogger())

	first, err := embedder.Embed(context.Background(), embedReq("same bytes"))
	require.NoError(t, err)
	second, err := embedder.Embed(context.Background(), embedReq("same bytes"))
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first, second)
	assert.Contains(t, cache.data, Key([]byte("same bytes")))
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	next := &countingEmbedder{err: errors.New("unavailable")}
	cache := &memCache{data: map[string]*usecase.EmbedRes{}}
	embedder := NewCachedEmbedder(next, cache, logger.NewNopLogger())

	_, err := embedder.Embed(context.Background(), embedReq("x"))
	assert.Error(t, err)
	assert.Empty(t, cache.data)

	next.err = nil
	next.res = usecase.NewEmbedRes(nil, "v1")
	res, err := embedder.Embed(context.Background(), embedReq("x"))
	require.NoError(t, err)
	assert.Empty(t, res.Vector)
	assert.Empty(t, cache.data)
}

func TestCachedEmbedder_CacheReadFailureFallsThrough(t *testing.T) {
	next := &countingEmbedder{res: usecase.NewEmbedRes([]float32{3}, "v1")}
	cache := &memCache{data: map[string]*usecase.EmbedRes{}, readErr: errors.New("redis down")}
	embedder := NewCachedEmbedder(next, cache, logger.NewNopLogger())

	res, err := embedder.Embed(context.Background(), embedReq("y"))
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, res.Vector)
	assert.Equal(t, 1, next.calls)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Key(nil))
	assert.NotEqual(t, Key([]byte("a")), Key([]byte("b")))
}
