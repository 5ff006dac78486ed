package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/jimlawless/whereami"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrExpectedMultipart):
		return http.StatusBadRequest, e.ErrExpectedMultipart.Error()
	case errors.Is(err, e.ErrOrganisationIDRequired):
		return http.StatusBadRequest, e.ErrOrganisationIDRequired.Error()
	case errors.Is(err, e.ErrTooManyImages):
		return http.StatusBadRequest, e.ErrTooManyImages.Error()
	case errors.Is(err, e.ErrNoImages):
		return http.StatusBadRequest, e.ErrNoImages.Error()
	case errors.Is(err, e.ErrNoValidImages):
		return http.StatusUnprocessableEntity, e.ErrNoValidImages.Error()
	case errors.Is(err, e.ErrRunNotFound):
		return http.StatusNotFound, e.ErrRunNotFound.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	WriteSuccess(w, code, NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return e.Wrap(err.Error(), e.ErrStatusBadRequest)
	}
	return nil
}

// parseImages читает файлы из формы. Проверка содержимого выполняется позже, по каждому файлу отдельно.
func parseImages(files []*multipart.FileHeader, maxImageCount int) ([]usecase.UploadedImage, error) {
	if len(files) == 0 {
		return nil, e.ErrNoImages
	}
	if maxImageCount > 0 && len(files) > maxImageCount {
		return nil, e.ErrTooManyImages
	}

	images := make([]usecase.UploadedImage, 0, len(files))
	for _, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		images = append(images, usecase.UploadedImage{Data: data, Name: fh.Filename})
	}
	return images, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, e.Wrap(fh.Filename, e.ErrInternalServerError)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, e.Wrap(fh.Filename, e.ErrInternalServerError)
	}

	return data, nil
}

// detachContext отвязывает обработку от жизни запроса: значения запроса сохраняются,
// а отменой управляет только runCtx.
func detachContext(reqCtx, runCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(reqCtx))
	stop := context.AfterFunc(runCtx, cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}
