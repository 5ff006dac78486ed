package converter

import (
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
)

// RunConverter преобразует сводку запуска в модели PostgreSQL и обратно.
type RunConverter interface {
	ToModel(report *domain.RunReport) *RunModel
	ToDropModels(runID string, stage domain.Stage, drops []domain.Drop) []DropModel
	ToEntity(model *RunModel) *domain.RunReport
}

type RunConverterImpl struct{}

func NewRunConverterImpl() *RunConverterImpl {
	return &RunConverterImpl{}
}

func (RunConverterImpl) ToModel(report *domain.RunReport) *RunModel {
	if report == nil {
		return nil
	}

	model := &RunModel{
		RunID:          report.RunID,
		OrganisationID: report.OrganisationID,
		SinkID:         report.SinkID,
		Status:         string(report.Status),
		Reason:         ConvertOptionalString(report.Reason),
		Delivered:      report.Delivered,
		StartedAt:      ConvertTime(report.StartedAt),
		FinishedAt:     ConvertTime(report.FinishedAt),
	}
	if report.Produce != nil {
		model.ItemsTotal = report.Produce.Total
		model.ItemsSucceeded = report.Produce.Succeeded
	}
	if report.Deliver != nil {
		model.BatchesTotal = report.Deliver.Total
		model.BatchesSucceeded = report.Deliver.Succeeded
	}

	return model
}

func (RunConverterImpl) ToDropModels(runID string, stage domain.Stage, drops []domain.Drop) []DropModel {
	models := make([]DropModel, 0, len(drops))
	for _, d := range drops {
		models = append(models, DropModel{
			RunID:    runID,
			Stage:    string(stage),
			Position: d.Position,
			Attempts: d.Attempts,
			Reason:   d.Reason,
		})
	}

	return models
}

// ToEntity восстанавливает сводку без списков отброшенных элементов.
func (RunConverterImpl) ToEntity(model *RunModel) *domain.RunReport {
	if model == nil {
		return nil
	}

	report := &domain.RunReport{
		RunID:          model.RunID,
		OrganisationID: model.OrganisationID,
		SinkID:         model.SinkID,
		Status:         domain.RunStatus(model.Status),
		Delivered:      model.Delivered,
		StartedAt:      ConvertTime(model.StartedAt),
		FinishedAt:     ConvertTime(model.FinishedAt),
		Produce:        &domain.StageReport{Total: model.ItemsTotal, Succeeded: model.ItemsSucceeded},
		Deliver:        &domain.StageReport{Total: model.BatchesTotal, Succeeded: model.BatchesSucceeded},
	}
	if model.Reason != nil {
		report.Reason = *model.Reason
	}

	return report
}

// ConvertTime приводит время к UTC.
func ConvertTime(t time.Time) time.Time {
	return t.UTC()
}

func ConvertOptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// OutboxEventConverter преобразует сущности OutboxEvent между usecase и моделью PostgreSQL.
type OutboxEventConverter interface {
	ToModel(entity *usecase.OutboxEvent) *OutboxEventModel
	ToEntity(model *OutboxEventModel) *usecase.OutboxEvent
	ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent
}

type OutboxEventConverterImpl struct{}

func NewOutboxEventConverterImpl() *OutboxEventConverterImpl {
	return &OutboxEventConverterImpl{}
}

func (OutboxEventConverterImpl) ToModel(entity *usecase.OutboxEvent) *OutboxEventModel {
	if entity == nil {
		return nil
	}

	return &OutboxEventModel{
		ID:          entity.ID,
		EventID:     entity.EventID,
		EventType:   entity.EventType,
		MessageKey:  entity.Key,
		Payload:     entity.Payload,
		Status:      string(entity.Status),
		Attempts:    entity.Attempts,
		CreatedAt:   ConvertTime(entity.CreatedAt),
		ProcessedAt: ConvertPointerTime(entity.ProcessedAt),
	}
}

func (OutboxEventConverterImpl) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	if model == nil {
		return nil
	}

	return &usecase.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   model.EventType,
		Key:         model.MessageKey,
		Payload:     model.Payload,
		Status:      usecase.OutboxStatus(model.Status),
		Attempts:    model.Attempts,
		CreatedAt:   ConvertTime(model.CreatedAt),
		ProcessedAt: ConvertPointerTime(model.ProcessedAt),
	}
}

func (c OutboxEventConverterImpl) ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	res := make([]*usecase.OutboxEvent, 0, len(models))
	for _, m := range models {
		res = append(res, c.ToEntity(m))
	}

	return res
}

func ConvertPointerTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
