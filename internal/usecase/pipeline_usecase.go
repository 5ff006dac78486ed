package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/google/uuid"
)

const reportTimeout = 5 * time.Second

// PipelineUseCase оркестрирует запуск: векторизация всех элементов, затем отправка батчей в хранилище.
type PipelineUseCase struct {
	producer    *Producer
	deliverer   *Deliverer
	cfg         *cfg.PipelineCfg
	validator   ImageValidator
	imagesInfra ImagesInfra // nil — исходники не архивируются
	reporters   []RunReporter
	logger      logger.Logger
	now         func() time.Time
}

func NewPipelineUC(
	producer *Producer,
	deliverer *Deliverer,
	cfg *cfg.PipelineCfg,
	validator ImageValidator,
	imagesInfra ImagesInfra,
	logger logger.Logger,
	reporters ...RunReporter,
) *PipelineUseCase {
	return &PipelineUseCase{
		producer:    producer,
		deliverer:   deliverer,
		cfg:         cfg,
		validator:   validator,
		imagesInfra: imagesInfra,
		reporters:   reporters,
		logger:      logger,
		now:         time.Now,
	}
}

// runOptions — параметры запуска после подстановки значений по умолчанию.
type runOptions struct {
	sinkID         string
	batchSize      int
	deliverRetries int
	produceRetries int
	deliverTimeout time.Duration
	produceTimeout time.Duration
}

// Run выполняет пайплайн и блокируется до завершения обеих стадий.
// Частичный или полный отказ не возвращается ошибкой: итог отражается в RunReport и логах.
func (p *PipelineUseCase) Run(ctx context.Context, req *RunReq) *domain.RunReport {
	const op = "PipelineUseCase.Run"

	opts := p.resolveRunOptions(req)
	report := &domain.RunReport{
		RunID:          uuid.NewString(),
		OrganisationID: req.OrganisationID,
		SinkID:         opts.sinkID,
		StartedAt:      p.now().UTC(),
	}

	if strings.TrimSpace(req.OrganisationID) == "" {
		p.logger.Errorf(e.ErrOrganisationIDRequired, "%s: organisation ID is required", op)
		report.Status = domain.RunAborted
		report.Reason = e.ErrOrganisationIDRequired.Error()
		report.FinishedAt = report.StartedAt
		return report
	}

	log := p.logger.With("organisation_id", req.OrganisationID, "run_id", report.RunID)
	log.Infof("starting image processing for organisation %s", req.OrganisationID)

	artifacts, produceReport := p.producer.GenerateAll(ctx, NewGenerateReq(
		req.Items,
		req.OrganisationID,
		report.StartedAt,
		opts.produceTimeout,
		opts.produceRetries,
	))
	report.Produce = produceReport

	deliverReport, delivered := p.deliverer.DeliverAll(ctx, NewDeliverReq(
		artifacts,
		opts.sinkID,
		opts.batchSize,
		opts.deliverRetries,
		opts.deliverTimeout,
	))
	report.Deliver = deliverReport
	report.Delivered = delivered

	report.FinishedAt = p.now().UTC()
	report.Resolve()

	log.Infof("image processing completed for organisation %s: status=%s produced=%d/%d delivered=%d",
		req.OrganisationID, report.Status, produceReport.Succeeded, produceReport.Total, delivered)

	p.publishReport(ctx, report)
	return report
}

// IngestImages валидирует загруженные файлы, архивирует прошедшие проверку и запускает по ним пайплайн.
func (p *PipelineUseCase) IngestImages(ctx context.Context, req *IngestReq) (*IngestRes, error) {
	const op = "PipelineUseCase.IngestImages"

	if strings.TrimSpace(req.OrganisationID) == "" {
		return nil, e.Wrap(op, e.ErrOrganisationIDRequired)
	}
	if len(req.Images) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	items, rejected := p.validateImages(req.Images)
	if len(items) == 0 {
		return &IngestRes{Rejected: rejected}, e.Wrap(op, e.ErrNoValidImages)
	}

	items = p.archiveImages(ctx, req.OrganisationID, items)

	report := p.Run(ctx, NewRunReq(items, req.OrganisationID, req.SinkID))
	return &IngestRes{Report: report, Rejected: rejected}, nil
}

// validateImages отбирает файлы, прошедшие проверку. Индексы элементов идут подряд среди прошедших.
func (p *PipelineUseCase) validateImages(images []UploadedImage) ([]domain.InputItem, []Rejection) {
	items := make([]domain.InputItem, 0, len(images))
	var rejected []Rejection

	for _, image := range images {
		mimeType, err := p.validator.Validate(image.Data)
		if err != nil {
			p.logger.Warnf("file %q failed validation: %v", image.Name, err)
			rejected = append(rejected, Rejection{Name: image.Name, Reason: err.Error()})
			continue
		}

		items = append(items, *domain.NewInputItem(len(items), image.Data, mimeType))
	}

	return items, rejected
}

// archiveImages сохраняет исходники в S3 и проставляет ключи элементам. Ошибка архивации не мешает запуску.
func (p *PipelineUseCase) archiveImages(ctx context.Context, organisationID string, items []domain.InputItem) []domain.InputItem {
	if p.imagesInfra == nil {
		return items
	}

	res, err := p.imagesInfra.UploadImages(ctx, NewUploadImagesReq(organisationID, items))
	if err != nil {
		p.logger.Warnf("archiving source images failed, continuing without image paths: %v", err)
		return items
	}

	for i := range items {
		items[i].ObjectKey = res.Keys[items[i].Index]
	}

	return items
}

// publishReport передаёт сводку всем получателям. Ошибки только логируются.
func (p *PipelineUseCase) publishReport(ctx context.Context, report *domain.RunReport) {
	if len(p.reporters) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	for _, reporter := range p.reporters {
		if err := reporter.Report(ctx, report); err != nil {
			p.logger.Warnf("failed to report run %s (%T): %v", report.RunID, reporter, err)
		}
	}
}

func (p *PipelineUseCase) resolveRunOptions(req *RunReq) runOptions {
	opts := runOptions{
		sinkID:         firstNonEmpty(req.SinkID, p.cfg.DefaultSinkID, cfg.FallbackSinkID),
		batchSize:      orDefault(req.BatchSize, p.cfg.BatchSize),
		deliverRetries: orDefault(req.MaxRetries, p.cfg.DeliverMaxRetries),
		produceRetries: orDefault(req.ProduceMaxRetries, p.cfg.ProduceMaxRetries),
		deliverTimeout: orDefault(req.DeliverTimeout, p.cfg.DeliverTimeout),
		produceTimeout: orDefault(req.ProduceTimeout, p.cfg.ProduceTimeout),
	}

	p.logger.Debugf("resolved run options: %+v", opts)
	return opts
}

func orDefault[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}

	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}
