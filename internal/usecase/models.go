package usecase

import (
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/google/uuid"
)

// PIPELINE

// RunReq — запрос на запуск пайплайна. Нулевые значения параметров берутся из cfg.PipelineCfg.
type RunReq struct {
	Items             []domain.InputItem
	OrganisationID    string
	SinkID            string
	BatchSize         int
	MaxRetries        int // повторы отправки батча
	ProduceMaxRetries int // повторы векторизации изображения
	DeliverTimeout    time.Duration
	ProduceTimeout    time.Duration
}

// GenerateReq — запрос стадии векторизации.
type GenerateReq struct {
	Items          []domain.InputItem
	OrganisationID string
	StartedAt      time.Time // момент старта запуска, общий для метаданных всех элементов
	Timeout        time.Duration
	MaxRetries     int
}

// DeliverReq — запрос стадии отправки в хранилище.
type DeliverReq struct {
	Artifacts  []domain.Artifact
	SinkID     string
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration
}

// INGEST

// UploadedImage — файл, полученный через multipart/form-data.
type UploadedImage struct {
	Data []byte
	Name string // оригинальное имя файла (для логов и ответа)
}

// IngestReq — загрузка изображений организации с последующим запуском пайплайна.
type IngestReq struct {
	OrganisationID string
	SinkID         string
	Images         []UploadedImage
}

// Rejection — файл, не прошедший валидацию.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type IngestRes struct {
	Report   *domain.RunReport `json:"report"`
	Rejected []Rejection       `json:"rejected,omitempty"`
}

// INFRASTUCTURE

// EmbedReq — запрос на векторизацию одного изображения.
type EmbedReq struct {
	Data     []byte
	MimeType string
	Metadata domain.Metadata
}

// EmbedRes — результат векторизации одного изображения.
type EmbedRes struct {
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// UploadImagesReq — запрос на архивирование исходных изображений.
type UploadImagesReq struct {
	OrganisationID string
	Items          []domain.InputItem
}

// UploadImagesRes — ключи в MinIO, по индексу входного элемента.
type UploadImagesRes struct {
	Keys map[int]string
}

// MAPPERS

func NewRunReq(items []domain.InputItem, organisationID string, sinkID string) *RunReq {
	return &RunReq{
		Items:          items,
		OrganisationID: organisationID,
		SinkID:         sinkID,
	}
}

func NewGenerateReq(items []domain.InputItem, organisationID string, startedAt time.Time, timeout time.Duration, maxRetries int) *GenerateReq {
	return &GenerateReq{
		Items:          items,
		OrganisationID: organisationID,
		StartedAt:      startedAt,
		Timeout:        timeout,
		MaxRetries:     maxRetries,
	}
}

func NewDeliverReq(artifacts []domain.Artifact, sinkID string, batchSize int, maxRetries int, timeout time.Duration) *DeliverReq {
	return &DeliverReq{
		Artifacts:  artifacts,
		SinkID:     sinkID,
		BatchSize:  batchSize,
		MaxRetries: maxRetries,
		Timeout:    timeout,
	}
}

func NewIngestReq(organisationID string, sinkID string, images []UploadedImage) *IngestReq {
	return &IngestReq{
		OrganisationID: organisationID,
		SinkID:         sinkID,
		Images:         images,
	}
}

func NewEmbedReq(data []byte, mimeType string, metadata domain.Metadata) *EmbedReq {
	return &EmbedReq{
		Data:     data,
		MimeType: mimeType,
		Metadata: metadata,
	}
}

func NewEmbedRes(vector []float32, modelVersion string) *EmbedRes {
	return &EmbedRes{
		Vector:       vector,
		ModelVersion: modelVersion,
	}
}

func NewUploadImagesReq(organisationID string, items []domain.InputItem) *UploadImagesReq {
	return &UploadImagesReq{
		OrganisationID: organisationID,
		Items:          items,
	}
}

func NewUploadImagesRes(keys map[int]string) *UploadImagesRes {
	return &UploadImagesRes{
		Keys: keys,
	}
}

// OUTBOX

// OutboxChannel — канал LISTEN/NOTIFY, в который сообщается о новых событиях outbox.
const OutboxChannel = "outbox_pending"

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
	Failed     OutboxStatus = "failed" // повторная отправка бессмысленна
)

// OutboxEvent — событие, записанное в одной транзакции с журналом и ожидающее отправки в брокер.
type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   string
	Key         string
	Payload     []byte
	Status      OutboxStatus
	Attempts    int
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

type WriteRawMessageReq struct {
	Key       string
	EventType string
	Payload   []byte
}

func NewOutboxEvent(eventType string, key string, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Key:       key,
		Payload:   payload,
		Status:    Pending,
		CreatedAt: time.Now().UTC(),
	}
}

func NewWriteRawMessageReq(key string, eventType string, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		Key:       key,
		EventType: eventType,
		Payload:   payload,
	}
}
