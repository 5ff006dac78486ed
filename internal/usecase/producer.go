package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/DRSN-tech/embedding-pipeline/pkg/retry"
	"github.com/DRSN-tech/embedding-pipeline/pkg/workerpool"
	"github.com/google/uuid"
)

// Producer — стадия векторизации: параллельно получает эмбеддинги для всех входных изображений.
type Producer struct {
	embedder   Embedder
	workers    int
	backoff    time.Duration
	maxBackoff time.Duration
	logger     logger.Logger
}

func NewProducer(embedder Embedder, cfg *cfg.PipelineCfg, logger logger.Logger) *Producer {
	return &Producer{
		embedder:   embedder,
		workers:    cfg.ProduceWorkers,
		backoff:    cfg.RetryBackoff,
		maxBackoff: cfg.MaxRetryBackoff,
		logger:     logger,
	}
}

type produceResult struct {
	artifact *domain.Artifact
	drop     *domain.Drop
}

// GenerateAll векторизует все элементы через пул воркеров с таймаутом и повтором при таймауте.
// Возвращает успешно полученные артефакты в порядке завершения; отброшенные элементы попадают только в сводку и логи.
func (p *Producer) GenerateAll(ctx context.Context, req *GenerateReq) ([]domain.Artifact, *domain.StageReport) {
	const op = "Producer.GenerateAll"

	report := &domain.StageReport{Total: len(req.Items)}
	if len(req.Items) == 0 {
		p.logger.Warnf("%s: no images provided for processing", op)
		return []domain.Artifact{}, report
	}

	startedAt := req.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	template := domain.NewMetadataTemplate(req.OrganisationID, startedAt)
	policy := retry.Policy{
		Timeout:     req.Timeout,
		MaxAttempts: req.MaxRetries,
		Backoff:     p.backoff,
		MaxBackoff:  p.maxBackoff,
	}

	resCh := make(chan produceResult, len(req.Items))
	pool := workerpool.New(p.workers)
	for _, item := range req.Items {
		metadata := template.ForItem(item)
		log := p.logger.With("organisation_id", req.OrganisationID, "position", item.Position())
		log.Infof("submitting task for image %d with metadata: %v", item.Position(), metadata)

		pool.Submit(ctx, func(ctx context.Context) {
			resCh <- p.produce(ctx, item, metadata, policy, log)
		})
	}

	artifacts := make([]domain.Artifact, 0, len(req.Items))
	for completed := 0; completed < len(req.Items); completed++ {
		res := <-resCh
		if res.artifact != nil {
			artifacts = append(artifacts, *res.artifact)
			continue
		}
		report.Dropped = append(report.Dropped, *res.drop)
	}
	pool.Wait()

	report.Succeeded = len(artifacts)
	if len(artifacts) == 0 {
		p.logger.Warnf("%s: no embeddings were generated", op)
	}

	return artifacts, report
}

// produce выполняет векторизацию одного элемента с повторами. Метаданные элемента создаются один раз
// и одинаковы во всех попытках.
func (p *Producer) produce(ctx context.Context, item domain.InputItem, metadata domain.Metadata, policy retry.Policy, log logger.Logger) produceResult {
	artifact, out := retry.Do(ctx, policy, func(ctx context.Context) (*domain.Artifact, error) {
		res, err := p.embedder.Embed(ctx, NewEmbedReq(item.Data, item.MimeType, metadata))
		if err != nil {
			return nil, err
		}
		if res == nil || len(res.Vector) == 0 {
			return nil, e.ErrEmptyEmbedding
		}

		return domain.NewArtifact(uuid.NewString(), item.Index, res.Vector, res.ModelVersion, metadata), nil
	}, func(attempt, maxAttempts int) {
		log.Warnf("timeout for image %d, retry %d/%d", item.Position(), attempt, maxAttempts)
	})

	if out.Status == retry.Succeeded {
		log.Infof("successfully generated embedding for image %d", item.Position())
		return produceResult{artifact: artifact}
	}

	log.Errorf(out.Err, "error processing image %d: dropped after %d attempt(s) (%s)", item.Position(), out.Attempts, out.Status)
	return produceResult{drop: &domain.Drop{
		Position: item.Position(),
		Attempts: out.Attempts,
		Reason:   out.Err.Error(),
	}}
}
