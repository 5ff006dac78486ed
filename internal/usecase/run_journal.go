package usecase

import (
	"context"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/DRSN-tech/embedding-pipeline/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
)

// RunJournal записывает сводки запусков в БД. Запуск и его отброшенные элементы сохраняются одной транзакцией.
// Если подключён outbox, в ту же транзакцию пишется событие о запуске для отправки в брокер.
type RunJournal struct {
	runRepo RunRepository
	dbPool  transaction.Transactional
	logger  logger.Logger

	outboxRepo OutboxRepository
	encoder    RunEventEncoder
}

func NewRunJournal(runRepo RunRepository, dbPool transaction.Transactional, logger logger.Logger) *RunJournal {
	return &RunJournal{
		runRepo: runRepo,
		dbPool:  dbPool,
		logger:  logger,
	}
}

func (j *RunJournal) Report(ctx context.Context, report *domain.RunReport) (err error) {
	const op = "RunJournal.Report"

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, j.dbPool)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				j.logger.Warnf("%s: rollback failed: %v", op, rbErr)
			}
		}
	}()
	ctx = tr.WithTx(ctx, tx.Transaction())

	if err = j.runRepo.Create(ctx, report); err != nil {
		return e.Wrap(op, err)
	}

	if report.Produce != nil {
		if err = j.runRepo.CreateDrops(ctx, report.RunID, domain.StageProduce, report.Produce.Dropped); err != nil {
			return e.Wrap(op, err)
		}
	}

	if report.Deliver != nil {
		if err = j.runRepo.CreateDrops(ctx, report.RunID, domain.StageDeliver, report.Deliver.Dropped); err != nil {
			return e.Wrap(op, err)
		}
	}

	if j.outboxRepo != nil {
		if err = j.addOutboxEvent(ctx, report); err != nil {
			return e.Wrap(op, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(op, err)
	}

	j.logger.Debugf("run %s recorded with status %s", report.RunID, report.Status)
	return nil
}

// WithOutbox включает запись события о запуске в outbox.
func (j *RunJournal) WithOutbox(outboxRepo OutboxRepository, encoder RunEventEncoder) *RunJournal {
	j.outboxRepo = outboxRepo
	j.encoder = encoder
	return j
}

func (j *RunJournal) addOutboxEvent(ctx context.Context, report *domain.RunReport) error {
	payload, err := j.encoder.GetPayloadBytes(report)
	if err != nil {
		return err
	}

	_, err = j.outboxRepo.Create(ctx, NewOutboxEvent(domain.EventRunCompleted, report.OrganisationID, payload))
	return err
}

// GetRun возвращает сводку запуска из журнала.
func (j *RunJournal) GetRun(ctx context.Context, runID string) (*domain.RunReport, error) {
	const op = "RunJournal.GetRun"

	report, err := j.runRepo.GetByRunID(ctx, runID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return report, nil
}
