package http

import (
	"context"

	_ "github.com/DRSN-tech/embedding-pipeline/docs" // Регистрация swagger-спецификации
	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

// Init регистрирует маршруты. journal может быть nil, тогда журнал запусков отвечает 404.
// runCtx живёт столько же, сколько приложение: его отмена останавливает незавершённые запуски.
func (r *Router) Init(runCtx context.Context, pipelineUC usecase.PipelineUC, journal usecase.RunJournalUC, validation *cfg.ValidationCfg) {
	r.router.Use(middleware.RequestID, middleware.Recoverer)

	r.router.Get("/healthz", healthz)
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		handler := NewPipelineHandler(runCtx, pipelineUC, journal, validation, r.logger)
		registerPipelineRoutes(v1, handler)
	})
}

func registerPipelineRoutes(router chi.Router, handler *PipelineHandler) {
	router.Post("/organisations/{orgID}/images", handler.ingestImages)
	router.Get("/runs/{runID}", handler.getRun)
}
