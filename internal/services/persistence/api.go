package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
	"github.com/LeonardoBeccarini/water-treatment/internal/model/messages"
)

// HistoryReader is what the HTTP API reads from. *Store implements it.
type HistoryReader interface {
	Ping(ctx context.Context) error
	LatestRunID(ctx context.Context) (string, error)
	Measurements(ctx context.Context, runID string, limit int) ([]messages.MeasurementRecord, error)
	Actions(ctx context.Context, runID string, limit int) ([]messages.ActionRecord, error)
	LoadRules(ctx context.Context) ([]entities.Rule, error)
	LoadOntology(ctx context.Context) ([]entities.OntologyTerm, error)
}

const (
	defaultLimit = 100
	maxLimit     = 5000
)

// NewHTTPMux exposes the stored history:
//
//	GET /healthz
//	GET /measurements?run=latest|all|<id>&limit=<n>
//	GET /actions?run=latest|all|<id>&limit=<n>
//	GET /rules
//	GET /ontology
//
// run defaults to latest; the resolved run is echoed in X-Run-ID.
func NewHTTPMux(h HistoryReader, log *zap.Logger) *http.ServeMux {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/measurements", func(w http.ResponseWriter, r *http.Request) {
		ctx, runID, limit, ok := historyQuery(w, r, h)
		if !ok {
			return
		}
		list, err := h.Measurements(ctx, runID, limit)
		if err != nil {
			log.Error("persistence: measurements query", zap.Error(err))
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []messages.MeasurementRecord{}
		}
		writeJSON(w, runID, list)
	})

	mux.HandleFunc("/actions", func(w http.ResponseWriter, r *http.Request) {
		ctx, runID, limit, ok := historyQuery(w, r, h)
		if !ok {
			return
		}
		list, err := h.Actions(ctx, runID, limit)
		if err != nil {
			log.Error("persistence: actions query", zap.Error(err))
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []messages.ActionRecord{}
		}
		writeJSON(w, runID, list)
	})

	mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		rs, err := h.LoadRules(r.Context())
		if err != nil {
			log.Error("persistence: rules query", zap.Error(err))
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		if rs == nil {
			rs = []entities.Rule{}
		}
		writeJSON(w, "", rs)
	})

	mux.HandleFunc("/ontology", func(w http.ResponseWriter, r *http.Request) {
		ts, err := h.LoadOntology(r.Context())
		if err != nil {
			log.Error("persistence: ontology query", zap.Error(err))
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		if ts == nil {
			ts = []entities.OntologyTerm{}
		}
		writeJSON(w, "", ts)
	})

	return mux
}

// historyQuery resolves the run and limit parameters. On failure it has
// already written the response and returns ok=false.
func historyQuery(w http.ResponseWriter, r *http.Request, h HistoryReader) (context.Context, string, int, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, "", 0, false
	}
	q := r.URL.Query()
	limit := defaultLimit
	if s := strings.TrimSpace(q.Get("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return nil, "", 0, false
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}

	ctx := r.Context()
	runID := strings.TrimSpace(q.Get("run"))
	switch runID {
	case "all":
		runID = ""
	case "", "latest":
		id, err := h.LatestRunID(ctx)
		if errors.Is(err, ErrNoRuns) {
			writeJSON(w, "", []struct{}{})
			return nil, "", 0, false
		}
		if err != nil {
			http.Error(w, "query failed", http.StatusInternalServerError)
			return nil, "", 0, false
		}
		runID = id
	}
	return ctx, runID, limit, true
}

func writeJSON(w http.ResponseWriter, runID string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if runID != "" {
		w.Header().Set("X-Run-ID", runID)
	}
	_ = json.NewEncoder(w).Encode(v)
}
