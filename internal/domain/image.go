package domain

import "fmt"

// InputItem описывает одно входное изображение пайплайна.
type InputItem struct {
	Index     int    // позиция во входном списке (с нуля)
	Data      []byte // байты изображения
	MimeType  string
	ObjectKey string // ключ исходника в S3, пустой если изображение не архивировалось
}

func NewInputItem(index int, data []byte, mimeType string) *InputItem {
	return &InputItem{
		Index:    index,
		Data:     data,
		MimeType: mimeType,
	}
}

// Position возвращает позицию элемента с единицы (для логов).
func (i InputItem) Position() int {
	return i.Index + 1
}

// Label возвращает имя файла, под которым элемент попадает в метаданные.
func (i InputItem) Label() string {
	return fmt.Sprintf("image_%d.jpg", i.Index)
}

// Image описывает изображение, которое хранится в S3
type Image struct {
	ID        string // uuid
	Bucket    string
	ObjectKey string
	Bytes     []byte
	// Передайте значение -1 в Size, если размер потока неизвестен
	// (внимание: при передаче значения -1 будет выделен большой объем памяти).
	Size        int64
	ContentType string // Example: "image/jpeg"
}

func NewImage(id string, bucket string, objectKey string, data []byte, contentType string) *Image {
	return &Image{
		ID:          id,
		Bucket:      bucket,
		ObjectKey:   objectKey,
		Bytes:       data,
		Size:        int64(len(data)),
		ContentType: contentType,
	}
}
