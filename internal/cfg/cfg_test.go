package cfg

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logger.Logger {
	return logger.NewSlogLoggerWithWriter(io.Discard, slog.LevelError)
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PIPELINE_SINK_ID", "MINIO_ENDPOINT", "REDIS_ADDR", "KAFKA_BROKERS", "POSTGRES_DB", "GRPC_PORT", "GRPC_NETWORK_MODE"} {
		t.Setenv(key, "")
	}

	c, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, FallbackSinkID, c.Pipeline.DefaultSinkID)
	assert.Equal(t, 100, c.Pipeline.BatchSize)
	assert.Equal(t, 5, c.Pipeline.DeliverMaxRetries)
	assert.Equal(t, 3, c.Pipeline.ProduceMaxRetries)
	assert.Equal(t, 60*time.Second, c.Pipeline.ProduceTimeout)
	assert.Equal(t, 60*time.Second, c.Pipeline.DeliverTimeout)
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/gif"}, c.Validation.AllowedTypes)
	assert.Equal(t, int64(5*1024*1024), c.Validation.MaxFileSize)
	assert.Equal(t, &GRPCConfig{Port: "8091", NetworkMode: "tcp"}, c.Grpc)

	assert.Nil(t, c.Minio)
	assert.Nil(t, c.Redis)
	assert.Nil(t, c.Kafka)
	assert.Nil(t, c.Db)
}

func TestLoad_PipelineOverrides(t *testing.T) {
	t.Setenv("PIPELINE_SINK_ID", "products")
	t.Setenv("PIPELINE_BATCH_SIZE", "25")
	t.Setenv("PIPELINE_DELIVER_TIMEOUT", "2m")
	t.Setenv("PIPELINE_DELIVER_RATE", "4.5")
	t.Setenv("ALLOWED_FILE_TYPES", "image/png, image/webp")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := Load(testLogger())
	require.NoError(t, err)

	assert.Equal(t, "products", c.Pipeline.DefaultSinkID)
	assert.Equal(t, 25, c.Pipeline.BatchSize)
	assert.Equal(t, 2*time.Minute, c.Pipeline.DeliverTimeout)
	assert.Equal(t, 4.5, c.Pipeline.DeliverRatePerSec)
	assert.Equal(t, []string{"image/png", "image/webp"}, c.Validation.AllowedTypes)
	require.NotNil(t, c.Kafka)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "pipeline.run.completed", c.Kafka.Topic)
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("PIPELINE_BATCH_SIZE", "zero")

	_, err := Load(testLogger())
	assert.ErrorIs(t, err, e.ErrIncorrectEnvVariable)
}

func TestLoad_PostgresRequiresCredentials(t *testing.T) {
	t.Setenv("POSTGRES_DB", "pipeline")
	t.Setenv("POSTGRES_USER", "")

	_, err := Load(testLogger())
	assert.Error(t, err)
}
