package domain

import (
	"maps"
	"time"
)

const (
	MetaOrganisationID = "organisation_id"
	MetaTimestamp      = "timestamp"
	MetaFileName       = "file_name"
	MetaImagePath      = "image_path"
	MetaModelVersion   = "model_version"
)

// Metadata описывает дополнительную информацию вектора
type Metadata map[string]any

// MetadataTemplate — общие для всего запуска поля метаданных. Создаётся один раз на вызов
// пайплайна и только читается воркерами.
type MetadataTemplate struct {
	organisationID string
	timestamp      string
}

func NewMetadataTemplate(organisationID string, now time.Time) MetadataTemplate {
	return MetadataTemplate{
		organisationID: organisationID,
		timestamp:      now.UTC().Format(time.RFC3339Nano),
	}
}

func (t MetadataTemplate) OrganisationID() string {
	return t.organisationID
}

func (t MetadataTemplate) Timestamp() string {
	return t.timestamp
}

// ForItem собирает новый экземпляр Metadata для элемента: общий шаблон плюс поля элемента.
func (t MetadataTemplate) ForItem(item InputItem) Metadata {
	meta := Metadata{
		MetaOrganisationID: t.organisationID,
		MetaTimestamp:      t.timestamp,
		MetaFileName:       item.Label(),
	}
	if item.ObjectKey != "" {
		meta[MetaImagePath] = item.ObjectKey
	}

	return meta
}

// Clone возвращает независимую копию метаданных.
func (m Metadata) Clone() Metadata {
	return maps.Clone(m)
}

func (m Metadata) String(key string) string {
	v, _ := m[key].(string)
	return v
}
