// File: internal/infra/web/server.go
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dossier/internal/infra/logging"
	"dossier/internal/usecase"
)

type Server struct {
	docUC       usecase.DocumentUseCase
	catUC       usecase.CategoryUseCase
	retrievalUC usecase.RetrievalUseCase
	inferenceUC usecase.InferenceUseCase
	log         *zerolog.Logger
}

func NewServer(
	docUC usecase.DocumentUseCase,
	catUC usecase.CategoryUseCase,
	retrievalUC usecase.RetrievalUseCase,
	inferenceUC usecase.InferenceUseCase,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		docUC:       docUC,
		catUC:       catUC,
		retrievalUC: retrievalUC,
		inferenceUC: inferenceUC,
		log:         logger,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.traceContext)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.createDocument)
			r.Get("/", s.listDocuments)
			r.Get("/{id}", s.getDocument)
			r.Delete("/{id}", s.deleteDocument)
			r.Post("/{id}/resubmit", s.resubmitDocument)
			r.Post("/{id}/summary", s.summarizeDocument)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Post("/", s.createCategory)
			r.Get("/", s.listCategories)
			r.Get("/{id}", s.getCategory)
			r.Patch("/{id}", s.updateCategory)
			r.Delete("/{id}", s.deleteCategory)
			r.Post("/{id}/documents", s.addCategoryDocuments)
			r.Delete("/{id}/documents", s.removeCategoryDocuments)
			r.Get("/{id}/documents", s.listCategoryDocuments)
			r.Get("/{id}/summary", s.categorySummary)
		})
		r.Post("/query", s.query)
		r.Post("/answer", s.answer)
	})

	return r
}

// traceContext carries chi's request id into the context so downstream
// log calls pick it up via logging.With.
func (s *Server) traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.With(r.Context(), s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
