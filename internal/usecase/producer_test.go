package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAll_EmptyInput(t *testing.T) {
	embedder := newFakeEmbedder(succeed())
	producer := NewProducer(embedder, testPipelineCfg(), newRecordingLogger())

	artifacts, report := producer.GenerateAll(context.Background(), NewGenerateReq(nil, "org", time.Now(), time.Second, 3))

	assert.NotNil(t, artifacts)
	assert.Empty(t, artifacts)
	assert.Equal(t, 0, report.Total)
	assert.Empty(t, embedder.seenMetadata())
}

func TestGenerateAll_AllSucceed(t *testing.T) {
	embedder := newFakeEmbedder(succeed())
	producer := NewProducer(embedder, testPipelineCfg(), newRecordingLogger())
	startedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	artifacts, report := producer.GenerateAll(context.Background(), NewGenerateReq(inputItems(5), "org-42", startedAt, time.Second, 3))

	require.Len(t, artifacts, 5)
	assert.Equal(t, 5, report.Succeeded)
	assert.Empty(t, report.Dropped)

	seen := map[int]bool{}
	ids := map[string]bool{}
	for _, a := range artifacts {
		assert.Equal(t, "org-42", a.Metadata[domain.MetaOrganisationID])
		assert.Equal(t, startedAt.Format(time.RFC3339Nano), a.Metadata[domain.MetaTimestamp])
		assert.Equal(t, "v1", a.ModelVersion)
		assert.NotEmpty(t, a.Vector)
		seen[a.Index] = true
		ids[a.ID] = true
	}
	assert.Len(t, seen, 5)
	assert.Len(t, ids, 5)
}

func TestGenerateAll_SharedTimestampAcrossRetries(t *testing.T) {
	embedder := newFakeEmbedder(succeed()).on(1, hangThenSucceed(2))
	producer := NewProducer(embedder, testPipelineCfg(), newRecordingLogger())

	artifacts, _ := producer.GenerateAll(context.Background(), NewGenerateReq(inputItems(3), "org", time.Time{}, 20*time.Millisecond, 3))
	require.Len(t, artifacts, 3)

	ts := artifacts[0].Metadata[domain.MetaTimestamp]
	require.NotEmpty(t, ts)
	for _, meta := range embedder.seenMetadata() {
		assert.Equal(t, ts, meta[domain.MetaTimestamp])
	}
	assert.Equal(t, 3, embedder.attemptsFor(1))
}

func TestGenerateAll_AlwaysTimingOutItemIsDropped(t *testing.T) {
	embedder := newFakeEmbedder(succeed()).on(0, hangAlways())
	log := newRecordingLogger()
	producer := NewProducer(embedder, testPipelineCfg(), log)

	artifacts, report := producer.GenerateAll(context.Background(), NewGenerateReq(inputItems(2), "org", time.Now(), 10*time.Millisecond, 4))

	require.Len(t, artifacts, 1)
	assert.Equal(t, 1, artifacts[0].Index)
	assert.Equal(t, 4, embedder.attemptsFor(0))
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, domain.Drop{Position: 1, Attempts: 4, Reason: e.ErrAttemptsExhausted.Error()}, report.Dropped[0])

	// после исчерпания попыток элемент больше не запрашивается
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 4, embedder.attemptsFor(0))
}

func TestGenerateAll_PermanentErrorSingleAttempt(t *testing.T) {
	embedder := newFakeEmbedder(succeed()).on(2, failWith(errors.New("model crashed")))
	producer := NewProducer(embedder, testPipelineCfg(), newRecordingLogger())

	artifacts, report := producer.GenerateAll(context.Background(), NewGenerateReq(inputItems(3), "org", time.Now(), time.Second, 5))

	assert.Len(t, artifacts, 2)
	assert.Equal(t, 1, embedder.attemptsFor(2))
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, 3, report.Dropped[0].Position)
	assert.Equal(t, 1, report.Dropped[0].Attempts)
	assert.Contains(t, report.Dropped[0].Reason, "model crashed")
}

func TestGenerateAll_EmptyResultIsDroppedWithoutRetry(t *testing.T) {
	embedder := newFakeEmbedder(emptyResult())
	producer := NewProducer(embedder, testPipelineCfg(), newRecordingLogger())

	artifacts, report := producer.GenerateAll(context.Background(), NewGenerateReq(inputItems(1), "org", time.Now(), time.Second, 3))

	assert.Empty(t, artifacts)
	assert.Equal(t, 1, embedder.attemptsFor(0))
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, e.ErrEmptyEmbedding.Error(), report.Dropped[0].Reason)
}

func TestGenerateAll_NeverMoreArtifactsThanItems(t *testing.T) {
	embedder := newFakeEmbedder(succeed()).
		on(0, hangAlways()).
		on(3, failWith(errors.New("bad"))).
		on(5, emptyResult())
	producer := NewProducer(embedder, testPipelineCfg(), newRecordingLogger())

	items := inputItems(8)
	artifacts, report := producer.GenerateAll(context.Background(), NewGenerateReq(items, "org", time.Now(), 10*time.Millisecond, 2))

	assert.LessOrEqual(t, len(artifacts), len(items))
	assert.Len(t, artifacts, 5)
	assert.Equal(t, report.Total, report.Succeeded+report.DroppedCount())
}

func TestGenerateAll_ResultsInCompletionOrder(t *testing.T) {
	cfg := testPipelineCfg()
	cfg.ProduceWorkers = 2
	embedder := newFakeEmbedder(succeed()).on(0, delayThenSucceed(50*time.Millisecond))
	producer := NewProducer(embedder, cfg, newRecordingLogger())

	artifacts, _ := producer.GenerateAll(context.Background(), NewGenerateReq(inputItems(4), "org", time.Now(), time.Second, 1))

	require.Len(t, artifacts, 4)
	// медленный первый элемент не задерживает остальные и завершается последним
	assert.Equal(t, 0, artifacts[len(artifacts)-1].Index)
}

func TestGenerateAll_LogsPermanentDrop(t *testing.T) {
	embedder := newFakeEmbedder(succeed()).on(1, failWith(errors.New("boom")))
	log := newRecordingLogger()
	producer := NewProducer(embedder, testPipelineCfg(), log)

	producer.GenerateAll(context.Background(), NewGenerateReq(inputItems(2), "org", time.Now(), time.Second, 3))

	lines := log.errorLines()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "error processing image 2"))
}
