package redis

import (
	"testing"

	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingKey(t *testing.T) {
	assert.Equal(t, "embedding:abc", embeddingKey("abc"))
}

func TestUnmarshalEmbeddingFromCache(t *testing.T) {
	model, err := unmarshalEmbeddingFromCache([]byte(`{"vector":[0.5,1],"model_version":"v3","cached_at":"2025-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1}, model.Vector)
	assert.Equal(t, "v3", model.ModelVersion)

	_, err = unmarshalEmbeddingFromCache([]byte(`{"vector":[],"model_version":"v3"}`))
	assert.ErrorIs(t, err, e.ErrEmptyEmbedding)

	_, err = unmarshalEmbeddingFromCache([]byte(`not json`))
	assert.Error(t, err)
}
