package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// maxRequestBytes bounds the JSON envelope around a maximal body.
const maxRequestBytes = validator.MaxBodyLength + 64<<10

type Handler struct {
	engine  *indexer.Engine
	tracker analytics.Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a handler that indexes into engine. Tracker and metrics may
// be nil.
func New(engine *indexer.Engine, tracker analytics.Tracker, m *metrics.Metrics) *Handler {
	return &Handler{
		engine:  engine,
		tracker: tracker,
		metrics: m,
		logger:  slog.Default().With("component", "ingestion-handler"),
	}
}

// Routes registers the ingestion endpoint on mux behind the given
// middleware, outermost first.
func (h *Handler) Routes(mux *http.ServeMux, middleware ...func(http.Handler) http.Handler) {
	var ingest http.Handler = http.HandlerFunc(h.Ingest)
	for i := len(middleware) - 1; i >= 0; i-- {
		ingest = middleware[i](ingest)
	}
	mux.Handle("POST /api/v1/documents", ingest)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	var req ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.engine.IndexText(req.Body, req.Name)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Warn("ingestion failed", "name", req.Name, "error", err, "status_code", statusCode)
		if h.metrics != nil && errors.Is(err, apperrors.ErrCapacityExceeded) {
			h.metrics.DocsSkippedTotal.WithLabelValues("capacity").Inc()
		}
		h.writeError(w, statusCode, err.Error())
		return
	}

	resp := ingestion.IngestResponse{
		DocumentID: id,
		Name:       req.Name,
		TermCount:  h.engine.IndexedTermCount(id),
		Status:     "indexed",
	}
	log.Info("document ingested", "doc_id", id, "name", req.Name, "terms", resp.TermCount)
	if h.metrics != nil {
		h.metrics.DocsIndexedTotal.Inc()
		h.metrics.ObserveCorpus(h.engine.DocCount(), h.engine.Terms(), h.engine.Size())
	}
	if h.tracker != nil {
		h.tracker.Track(req.Name, analytics.IndexEvent{
			Type:       analytics.EventIndexDoc,
			DocumentID: id,
			Name:       req.Name,
			TermCount:  resp.TermCount,
			SizeBytes:  int64(len(req.Body)),
			Timestamp:  time.Now().UTC(),
		})
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
