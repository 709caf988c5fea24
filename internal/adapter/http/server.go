package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/insurance-maps/internal/csvio"
	"github.com/couchcryptid/insurance-maps/internal/domain"
	"github.com/couchcryptid/insurance-maps/internal/ingest"
	"github.com/couchcryptid/insurance-maps/internal/render"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// multipartOverhead is the allowance for multipart framing on top of the
// CSV size limit.
const multipartOverhead = 64 << 10

// Importer changes stored datasets.
type Importer interface {
	Import(ctx context.Context, trade string, r io.Reader) (ingest.Result, error)
	Delete(ctx context.Context, trade domain.Trade) (int, error)
	CheckReadiness(ctx context.Context) error
}

// Datasets reads stored datasets.
type Datasets interface {
	Get(ctx context.Context, trade domain.Trade) (*domain.Dataset, error)
	List(ctx context.Context) ([]domain.TradeSummary, error)
}

// Pages renders map pages and heat map snapshots.
type Pages interface {
	Page(ds *domain.Dataset, m domain.Metric, state domain.StateCode) ([]byte, error)
	Snapshot(ds *domain.Dataset, m domain.Metric, state domain.StateCode) (*render.Snapshot, error)
}

// Server exposes the map pages, the dataset API, and health, readiness,
// and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	importer   Importer
	datasets   Datasets
	pages      Pages
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(addr string, importer Importer, datasets Datasets, pages Pages, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:   logger,
		importer: importer,
		datasets: datasets,
		pages:    pages,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(importer))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /maps/{trade}", s.handlePage)
	mux.HandleFunc("GET /api/trades", s.handleListTrades)
	mux.HandleFunc("GET /api/trades/{trade}/heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /api/trades/{trade}/csv", s.handleExport)
	mux.HandleFunc("POST /api/trades/{trade}/csv", s.handleImport)
	mux.HandleFunc("DELETE /api/trades/{trade}", s.handleDelete)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ds, m, state, ok := s.viewRequest(w, r)
	if !ok {
		return
	}
	page, err := s.pages.Page(ds, m, state)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !ds.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", ds.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(page) //nolint:errcheck // client went away
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	ds, m, state, ok := s.viewRequest(w, r)
	if !ok {
		return
	}
	snap, err := s.pages.Snapshot(ds, m, state)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	list, err := s.datasets.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"trades": list})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+string(ds.Trade)+`.csv"`)
	if err := csvio.Write(w, ds); err != nil {
		s.logger.Error("export csv failed", "trade", ds.Trade, "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, csvio.MaxUploadBytes+multipartOverhead)

	body, err := uploadBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.importer.Import(r.Context(), r.PathValue("trade"), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	trade, err := domain.ParseTrade(r.PathValue("trade"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.importer.Delete(r.Context(), trade)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"trade": trade, "deleted_rows": n})
}

// uploadBody returns the CSV stream of an upload: the csv_file part of a
// multipart form, or the raw request body.
func uploadBody(r *http.Request) (io.Reader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, badRequest("malformed multipart body")
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, badRequest("missing csv_file field")
		}
		if err != nil {
			return nil, tooLargeOr(err, "malformed multipart body")
		}
		if part.FormName() == "csv_file" {
			return part, nil
		}
	}
}

func (s *Server) loadDataset(w http.ResponseWriter, r *http.Request) (*domain.Dataset, bool) {
	trade, err := domain.ParseTrade(r.PathValue("trade"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	ds, err := s.datasets.Get(r.Context(), trade)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return ds, true
}

// viewRequest resolves the dataset, metric and selection of a page or
// heatmap request. An unknown state is ignored rather than rejected.
func (s *Server) viewRequest(w http.ResponseWriter, r *http.Request) (*domain.Dataset, domain.Metric, domain.StateCode, bool) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return nil, domain.Metric{}, "", false
	}

	q := r.URL.Query()
	m := domain.DefaultMetric
	if id := q.Get("metric"); id != "" {
		var err error
		m, err = domain.ParseMetric(id, q.Get("class"))
		if err != nil {
			s.writeError(w, r, badRequest(err.Error()))
			return nil, domain.Metric{}, "", false
		}
	}

	state, valid := domain.ParseStateCode(q.Get("state"))
	if !valid {
		state = ""
	}
	return ds, m, state, true
}

type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &statusError{status: http.StatusBadRequest, msg: msg}
}

func tooLargeOr(err error, msg string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ingest.ErrTooLarge
	}
	return badRequest(msg)
}

// writeError maps domain and ingest errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	var se *statusError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &se):
		status, msg = se.status, se.msg
	case errors.Is(err, ingest.ErrTooLarge), errors.As(err, &maxErr):
		status, msg = http.StatusRequestEntityTooLarge, ingest.ErrTooLarge.Error()
	case errors.Is(err, domain.ErrInvalidTrade),
		errors.Is(err, ingest.ErrInvalidCSV),
		errors.Is(err, render.ErrUnknownMetric):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrTradeNotFound):
		status, msg = http.StatusNotFound, err.Error()
	}

	attrs := []any{"method", r.Method, "path", r.URL.Path, "status", status, "error", err}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Debug("request rejected", attrs...)
	}

	if strings.HasPrefix(r.URL.Path, "/maps/") {
		http.Error(w, msg, status)
		return
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
