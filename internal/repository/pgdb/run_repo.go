package pgdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// RunRepo реализует журнал запусков пайплайна поверх PostgreSQL.
type RunRepo struct {
	pool *pgxpool.Pool
	conv converter.RunConverter
}

func NewRunRepo(pool *pgxpool.Pool, conv converter.RunConverter) *RunRepo {
	return &RunRepo{pool: pool, conv: conv}
}

// Create сохраняет сводку запуска. Работает только внутри транзакции из контекста.
func (r *RunRepo) Create(ctx context.Context, report *domain.RunReport) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	model := r.conv.ToModel(report)
	query := `
		INSERT INTO pipeline_runs (
			run_id,
			organisation_id,
			sink_id,
			status,
			reason,
			items_total,
			items_succeeded,
			batches_total,
			batches_succeeded,
			delivered,
			started_at,
			finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at;
	`

	if err := tx.QueryRow(ctx, query,
		model.RunID,
		model.OrganisationID,
		model.SinkID,
		model.Status,
		model.Reason,
		model.ItemsTotal,
		model.ItemsSucceeded,
		model.BatchesTotal,
		model.BatchesSucceeded,
		model.Delivered,
		model.StartedAt,
		model.FinishedAt,
	).Scan(&model.ID, &model.CreatedAt); err != nil {
		if postgresDuplicate(err) {
			return fmt.Errorf("%s: run %s already recorded", whereami.WhereAmI(), report.RunID)
		}

		return fmt.Errorf("%s: failed to insert run: %w", whereami.WhereAmI(), err)
	}

	return nil
}

// CreateDrops сохраняет отброшенные элементы или батчи стадии через COPY.
func (r *RunRepo) CreateDrops(ctx context.Context, runID string, stage domain.Stage, drops []domain.Drop) error {
	if len(drops) == 0 {
		return nil
	}

	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	models := r.conv.ToDropModels(runID, stage, drops)
	rows := make([][]any, 0, len(models))
	for _, m := range models {
		rows = append(rows, []any{m.RunID, m.Stage, m.Position, m.Attempts, m.Reason})
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"pipeline_run_drops"},
		[]string{"run_id", "stage", "position", "attempts", "reason"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("%s: failed to insert drops: %w", whereami.WhereAmI(), err)
	}

	return nil
}

// GetByRunID возвращает сводку запуска без списков отброшенных элементов.
func (r *RunRepo) GetByRunID(ctx context.Context, runID string) (*domain.RunReport, error) {
	query := `
		SELECT id, run_id, organisation_id, sink_id, status, reason,
		       items_total, items_succeeded, batches_total, batches_succeeded,
		       delivered, started_at, finished_at, created_at
		FROM pipeline_runs
		WHERE run_id = $1;
	`

	var model converter.RunModel
	if err := r.pool.QueryRow(ctx, query, runID).Scan(
		&model.ID, &model.RunID, &model.OrganisationID, &model.SinkID, &model.Status, &model.Reason,
		&model.ItemsTotal, &model.ItemsSucceeded, &model.BatchesTotal, &model.BatchesSucceeded,
		&model.Delivered, &model.StartedAt, &model.FinishedAt, &model.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrRunNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(&model), nil
}

// postgresDuplicate сообщает, нарушено ли ограничение уникальности.
func postgresDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
