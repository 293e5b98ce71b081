package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"star-offers/internal/ingest"

	"github.com/gorilla/mux"
)

type Runner interface {
	Run(ctx context.Context) (ingest.Result, error)
}

type Loader interface {
	Load(ctx context.Context) ([]byte, error)
}

type errorResponse struct {
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

type handler struct {
	runner Runner
	offers Loader
	logger *log.Logger
}

// NewRouter exposes the health check, the current offers file and a manual refresh trigger.
func NewRouter(runner Runner, offers Loader, logger *log.Logger) *mux.Router {
	if logger == nil {
		logger = log.Default()
	}
	h := &handler{runner: runner, offers: offers, logger: logger}

	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/offers.json", h.getOffers).Methods(http.MethodGet)
	r.HandleFunc("/refresh", h.refresh).Methods(http.MethodPost)

	return r
}

func (h *handler) getOffers(w http.ResponseWriter, r *http.Request) {
	body, err := h.offers.Load(r.Context())
	if errors.Is(err, os.ErrNotExist) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "offers have not been fetched yet"})
		return
	}
	if err != nil {
		h.logger.Printf("failed to load offers: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load offers"})
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.Run(r.Context())
	if err != nil {
		kind := ingest.KindOf(err)
		writeJSON(w, statusFor(kind), errorResponse{Kind: kind.String(), Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func statusFor(kind ingest.Kind) int {
	switch kind {
	case ingest.KindNetwork:
		return http.StatusBadGateway
	case ingest.KindParse, ingest.KindField:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Start serves in the background; callers stop it with srv.Shutdown.
func Start(srv *http.Server, logger *log.Logger) {
	go func() {
		logger.Printf("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("HTTP server error: %v", err)
		}
	}()
}
