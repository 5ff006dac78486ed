package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/DRSN-tech/embedding-pipeline/pkg/retry"
	"github.com/DRSN-tech/embedding-pipeline/pkg/workerpool"
	"golang.org/x/time/rate"
)

// Deliverer — стадия отправки: делит артефакты на батчи и параллельно отправляет их в хранилище.
type Deliverer struct {
	sink       Sink
	workers    int
	limiter    *rate.Limiter
	backoff    time.Duration
	maxBackoff time.Duration
	logger     logger.Logger
}

func NewDeliverer(sink Sink, cfg *cfg.PipelineCfg, logger logger.Logger) *Deliverer {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.DeliverRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.DeliverRatePerSec), max(1, int(cfg.DeliverRatePerSec)))
	}

	return &Deliverer{
		sink:       sink,
		workers:    cfg.DeliverWorkers,
		limiter:    limiter,
		backoff:    cfg.RetryBackoff,
		maxBackoff: cfg.MaxRetryBackoff,
		logger:     logger,
	}
}

type deliverResult struct {
	batch domain.Batch
	drop  *domain.Drop
}

// DeliverAll отправляет артефакты батчами по BatchSize. Батч, исчерпавший попытки или получивший
// неповторяемую ошибку, отбрасывается без влияния на остальные.
// Возвращает сводку и число артефактов в успешно доставленных батчах.
func (d *Deliverer) DeliverAll(ctx context.Context, req *DeliverReq) (*domain.StageReport, int) {
	const op = "Deliverer.DeliverAll"

	report := &domain.StageReport{}
	if len(req.Artifacts) == 0 {
		d.logger.Warnf("%s: no embeddings to upload", op)
		return report, 0
	}

	batches := domain.Partition(req.Artifacts, req.BatchSize)
	report.Total = len(batches)
	policy := retry.Policy{
		Timeout:     req.Timeout,
		MaxAttempts: req.MaxRetries,
		Backoff:     d.backoff,
		MaxBackoff:  d.maxBackoff,
	}

	resCh := make(chan deliverResult, len(batches))
	pool := workerpool.New(d.workers)
	for _, batch := range batches {
		log := d.logger.With("sink_id", req.SinkID, "batch", batch.Number)
		log.Infof("scheduling batch %d with %d embeddings for upload", batch.Number, batch.Len())

		pool.Submit(ctx, func(ctx context.Context) {
			resCh <- d.deliver(ctx, batch, req.SinkID, policy, log)
		})
	}

	delivered := 0
	for completed := 0; completed < len(batches); completed++ {
		res := <-resCh
		if res.drop != nil {
			report.Dropped = append(report.Dropped, *res.drop)
			continue
		}
		report.Succeeded++
		delivered += res.batch.Len()
	}
	pool.Wait()

	return report, delivered
}

func (d *Deliverer) deliver(ctx context.Context, batch domain.Batch, sinkID string, policy retry.Policy, log logger.Logger) deliverResult {
	if err := d.limiter.Wait(ctx); err != nil {
		log.Errorf(err, "batch %d dropped before upload", batch.Number)
		return deliverResult{batch: batch, drop: &domain.Drop{Position: batch.Number, Reason: err.Error()}}
	}

	_, out := retry.Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.sink.Deliver(ctx, batch, sinkID)
	}, func(attempt, maxAttempts int) {
		log.Warnf("timeout while uploading batch %d, retry %d/%d", batch.Number, attempt, maxAttempts)
	})

	if out.Status == retry.Succeeded {
		log.Infof("batch %d uploaded successfully", batch.Number)
		return deliverResult{batch: batch}
	}

	log.Errorf(out.Err, "error uploading batch %d: dropped after %d attempt(s) (%s)", batch.Number, out.Attempts, out.Status)
	return deliverResult{batch: batch, drop: &domain.Drop{
		Position: batch.Number,
		Attempts: out.Attempts,
		Reason:   out.Err.Error(),
	}}
}
