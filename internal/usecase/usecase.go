package usecase

import (
	"context"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
)

type PipelineUC interface {
	Run(ctx context.Context, req *RunReq) *domain.RunReport
	IngestImages(ctx context.Context, req *IngestReq) (*IngestRes, error)
}

// RunReporter получает сводку каждого завершённого запуска.
type RunReporter interface {
	Report(ctx context.Context, report *domain.RunReport) error
}

// RunJournalUC — доступ к журналу запусков.
type RunJournalUC interface {
	RunReporter
	GetRun(ctx context.Context, runID string) (*domain.RunReport, error)
}
