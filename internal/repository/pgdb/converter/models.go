package converter

import "time"

// RunModel представляет запись таблицы pipeline_runs в PostgreSQL.
type RunModel struct {
	ID               int64     `db:"id"`
	RunID            string    `db:"run_id"`
	OrganisationID   string    `db:"organisation_id"`
	SinkID           string    `db:"sink_id"`
	Status           string    `db:"status"`
	Reason           *string   `db:"reason"`
	ItemsTotal       int       `db:"items_total"`
	ItemsSucceeded   int       `db:"items_succeeded"`
	BatchesTotal     int       `db:"batches_total"`
	BatchesSucceeded int       `db:"batches_succeeded"`
	Delivered        int       `db:"delivered"`
	StartedAt        time.Time `db:"started_at"`
	FinishedAt       time.Time `db:"finished_at"`
	CreatedAt        time.Time `db:"created_at"`
}

// DropModel представляет запись таблицы pipeline_run_drops в PostgreSQL.
type DropModel struct {
	ID       int64  `db:"id"`
	RunID    string `db:"run_id"`
	Stage    string `db:"stage"`
	Position int    `db:"position"`
	Attempts int    `db:"attempts"`
	Reason   string `db:"reason"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	MessageKey  string     `db:"message_key"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	Attempts    int        `db:"attempts"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
