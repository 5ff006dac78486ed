package domain

// Artifact — результат успешной векторизации одного изображения.
type Artifact struct {
	ID           string // uuid, используется как ID точки в векторном хранилище
	Index        int    // позиция исходного элемента
	Vector       []float32
	ModelVersion string
	Metadata     Metadata
}

func NewArtifact(id string, index int, vector []float32, modelVersion string, metadata Metadata) *Artifact {
	return &Artifact{
		ID:           id,
		Index:        index,
		Vector:       vector,
		ModelVersion: modelVersion,
		Metadata:     metadata,
	}
}

// Payload возвращает полезную нагрузку для хранилища: метаданные плюс версия модели.
func (a Artifact) Payload() map[string]any {
	payload := make(map[string]any, len(a.Metadata)+1)
	for k, v := range a.Metadata {
		payload[k] = v
	}
	if a.ModelVersion != "" {
		payload[MetaModelVersion] = a.ModelVersion
	}

	return payload
}
