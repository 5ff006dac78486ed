package converter

import "time"

// EmbeddingRedisModel — закэшированный результат векторизации.
type EmbeddingRedisModel struct {
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
	CachedAt     time.Time `json:"cached_at"`
}
