package domain

import "time"

// RunStatus — итоговый статус запуска пайплайна.
type RunStatus string

const (
	RunCompleted RunStatus = "completed" // все элементы и батчи обработаны успешно
	RunPartial   RunStatus = "partial"   // часть элементов или батчей отброшена
	RunFailed    RunStatus = "failed"    // ни одного артефакта не доставлено
	RunAborted   RunStatus = "aborted"   // предусловие не выполнено, работа не запускалась
)

// Stage — стадия пайплайна, в которой элемент или батч был отброшен.
type Stage string

const (
	StageProduce Stage = "produce"
	StageDeliver Stage = "deliver"
)

// Drop описывает окончательно отброшенный элемент или батч.
type Drop struct {
	Position int    `json:"position"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason"`
}

// StageReport — сводка по одной стадии.
type StageReport struct {
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Dropped   []Drop `json:"dropped,omitempty"`
}

func (s *StageReport) DroppedCount() int {
	return len(s.Dropped)
}

// RunReport — сводка по запуску пайплайна.
type RunReport struct {
	RunID          string       `json:"run_id"`
	OrganisationID string       `json:"organisation_id"`
	SinkID         string       `json:"sink_id"`
	Status         RunStatus    `json:"status"`
	Reason         string       `json:"reason,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	Produce        *StageReport `json:"produce"`
	Deliver        *StageReport `json:"deliver"`
	Delivered      int          `json:"delivered"` // число артефактов в успешно доставленных батчах
}

// Resolve вычисляет итоговый статус по сводкам стадий.
func (r *RunReport) Resolve() {
	if r.Status == RunAborted {
		return
	}

	switch {
	case r.Delivered == 0 && r.Produce != nil && r.Produce.Total > 0:
		r.Status = RunFailed
	case r.Produce != nil && r.Produce.DroppedCount() > 0,
		r.Deliver != nil && r.Deliver.DroppedCount() > 0:
		r.Status = RunPartial
	default:
		r.Status = RunCompleted
	}
}

// EventRunCompleted — тип события о завершённом запуске пайплайна.
const EventRunCompleted = "pipeline.run.completed"
