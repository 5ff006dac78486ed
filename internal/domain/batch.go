package domain

// Batch — непрерывный упорядоченный срез артефактов для одной отправки в хранилище.
type Batch struct {
	Number    int // номер батча с единицы
	Artifacts []Artifact
}

func (b Batch) Len() int {
	return len(b.Artifacts)
}

// Partition разбивает артефакты на непрерывные батчи размера size с сохранением порядка.
// Последний батч может быть короче. size < 1 трактуется как 1.
func Partition(artifacts []Artifact, size int) []Batch {
	if len(artifacts) == 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}

	batches := make([]Batch, 0, (len(artifacts)+size-1)/size)
	for start := 0; start < len(artifacts); start += size {
		end := min(start+size, len(artifacts))
		batches = append(batches, Batch{
			Number:    len(batches) + 1,
			Artifacts: artifacts[start:end:end],
		})
	}

	return batches
}
