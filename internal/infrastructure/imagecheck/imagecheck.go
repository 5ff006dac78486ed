// Package imagecheck проверяет загруженные изображения до векторизации: размер, тип содержимого,
// сигнатуру файла и целостность.
package imagecheck

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"slices"
	"strings"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/shopspring/decimal"
)

const sniffLen = 512

var bytesInMB = decimal.NewFromInt(1024 * 1024)

// signature — сигнатура формата в начале файла.
type signature struct {
	offset   int
	magic    []byte
	mimeType string
}

var signatures = []signature{
	{offset: 0, magic: []byte{0xFF, 0xD8, 0xFF}, mimeType: "image/jpeg"},
	{offset: 0, magic: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, mimeType: "image/png"},
	{offset: 0, magic: []byte("GIF87a"), mimeType: "image/gif"},
	{offset: 0, magic: []byte("GIF89a"), mimeType: "image/gif"},
	{offset: 8, magic: []byte("WEBP"), mimeType: "image/webp"},
}

// Validator выполняет проверки в порядке: размер, тип, сигнатура, целостность.
type Validator struct {
	allowedTypes []string
	maxFileSize  int64
}

func NewValidator(cfg *cfg.ValidationCfg) *Validator {
	return &Validator{
		allowedTypes: cfg.AllowedTypes,
		maxFileSize:  cfg.MaxFileSize,
	}
}

// Validate возвращает MIME-тип изображения или ошибку первой не пройденной проверки.
func (v *Validator) Validate(data []byte) (string, error) {
	if err := v.CheckFileSize(data); err != nil {
		return "", err
	}

	mimeType, err := v.CheckFileType(data)
	if err != nil {
		return "", err
	}

	if err := v.CheckMagicNumber(data); err != nil {
		return "", err
	}

	if err := VerifyImage(data); err != nil {
		return "", err
	}

	return mimeType, nil
}

// CheckFileSize проверяет, что файл не превышает лимит.
func (v *Validator) CheckFileSize(data []byte) error {
	if v.maxFileSize > 0 && int64(len(data)) > v.maxFileSize {
		limit := decimal.NewFromInt(v.maxFileSize).Div(bytesInMB).StringFixed(2)
		return fmt.Errorf("%w: file size exceeds the maximum limit of %s MB", e.ErrFileTooLarge, limit)
	}

	return nil
}

// CheckFileType определяет MIME-тип по содержимому и сверяет его со списком разрешённых.
func (v *Validator) CheckFileType(data []byte) (string, error) {
	mimeType := http.DetectContentType(data[:min(len(data), sniffLen)])
	if !slices.Contains(v.allowedTypes, mimeType) {
		return "", fmt.Errorf("%w: invalid file type detected: %s. Allowed types: %s",
			e.ErrUnsupportedMediaType, mimeType, strings.Join(v.allowedTypes, ", "))
	}

	return mimeType, nil
}

// CheckMagicNumber сверяет сигнатуру файла со списком разрешённых форматов.
func (v *Validator) CheckMagicNumber(data []byte) error {
	mimeType := detectSignature(data)
	if mimeType == "" || !slices.Contains(v.allowedTypes, mimeType) {
		if mimeType == "" {
			mimeType = "unknown"
		}
		return fmt.Errorf("%w: %s. Allowed types: %s", e.ErrInvalidMagicNumber, mimeType, strings.Join(v.allowedTypes, ", "))
	}

	return nil
}

// VerifyImage полностью декодирует изображение, чтобы отсечь обрезанные и повреждённые файлы.
func VerifyImage(data []byte) error {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return e.ErrCorruptedImage
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return e.ErrCorruptedImage
	}

	return nil
}

func detectSignature(data []byte) string {
	for _, s := range signatures {
		end := s.offset + len(s.magic)
		if len(data) >= end && bytes.Equal(data[s.offset:end], s.magic) {
			return s.mimeType
		}
	}

	return ""
}
