package e

import "fmt"

var (
	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")

	// Ошибки БД
	ErrTransactionNotFound = fmt.Errorf("transaction not found in context")
	ErrRunNotFound         = fmt.Errorf("run not found")

	// Ошибки пайплайна
	ErrOrganisationIDRequired = fmt.Errorf("organisation id is required")
	ErrEmptyEmbedding         = fmt.Errorf("embedding is empty")
	ErrAttemptsExhausted      = fmt.Errorf("all attempts timed out")
	ErrInvalidEmbedderReply   = fmt.Errorf("invalid embedder reply")

	// Ошибки валидации изображений
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrInvalidMagicNumber   = fmt.Errorf("invalid magic number")
	ErrCorruptedImage       = fmt.Errorf("invalid image: the image is corrupted or not a valid format")
	ErrFileTooLarge         = fmt.Errorf("file too large")

	// 400 Bad Request
	ErrStatusBadRequest  = fmt.Errorf("bad request")
	ErrExpectedMultipart = fmt.Errorf("expected multipart/form-data")
	ErrNoImages          = fmt.Errorf("no images provided")
	ErrTooManyImages     = fmt.Errorf("too many images")
	ErrNoValidImages     = fmt.Errorf("no valid images provided")

	// 500
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
