package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type PipelineHandler struct {
	runCtx          context.Context
	pipelineUsecase usecase.PipelineUC
	journal         usecase.RunJournalUC // nil — журнал запусков отключён
	validation      *cfg.ValidationCfg
	logger          logger.Logger
}

func NewPipelineHandler(runCtx context.Context, pipelineUsecase usecase.PipelineUC, journal usecase.RunJournalUC, validation *cfg.ValidationCfg, logger logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		runCtx:          runCtx,
		pipelineUsecase: pipelineUsecase,
		journal:         journal,
		validation:      validation,
		logger:          logger,
	}
}

// ingestImages
//
//	@Summary		Загрузка изображений организации
//	@Description	Проверяет файлы, векторизует прошедшие проверку и отправляет эмбеддинги в хранилище
//	@Tags			pipeline
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			orgID	path		string	true	"Идентификатор организации"
//	@Param			images	formData	file	true	"Изображения"
//	@Param			sink	formData	string	false	"Идентификатор хранилища"
//	@Success		200		{object}	usecase.IngestRes	"Сводка запуска"
//	@Failure		400		{object}	ErrorResponse		"Ошибка запроса"
//	@Failure		422		{object}	usecase.IngestRes	"Ни один файл не прошёл проверку"
//	@Router			/organisations/{orgID}/images [post]
func (h *PipelineHandler) ingestImages(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 32 << 20

	maxTotalRequestSize := h.validation.MaxFileSize*int64(max(1, h.validation.MaxImageCount)) + maxMemory
	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	images, err := parseImages(r.MultipartForm.File["images"], h.validation.MaxImageCount)
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	// Отключение клиента не отменяет запуск, остановка приложения отменяет
	ctx, cancel := detachContext(r.Context(), h.runCtx)
	defer cancel()

	orgID := chi.URLParam(r, "orgID")
	res, err := h.pipelineUsecase.IngestImages(ctx, usecase.NewIngestReq(orgID, r.FormValue("sink"), images))
	if err != nil {
		h.logger.Warnf("ingest for organisation %s failed: %v", orgID, err)
		if errors.Is(err, e.ErrNoValidImages) && res != nil {
			WriteSuccess(w, http.StatusUnprocessableEntity, res)
			return
		}
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, res)
}

// getRun
//
//	@Summary	Сводка запуска
//	@Tags		pipeline
//	@Produce	json
//	@Param		runID	path		string	true	"Идентификатор запуска"
//	@Success	200		{object}	domain.RunReport
//	@Failure	404		{object}	ErrorResponse
//	@Router		/runs/{runID} [get]
func (h *PipelineHandler) getRun(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		WriteError(w, e.ErrRunNotFound)
		return
	}

	report, err := h.journal.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		if !errors.Is(err, e.ErrRunNotFound) {
			h.logger.Errorf(err, "failed to load run")
		}
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, report)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}
