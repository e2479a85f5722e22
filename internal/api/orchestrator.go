package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"stock-backfill/internal/clock"
	"stock-backfill/internal/idhash"
	"stock-backfill/internal/observability"
	"stock-backfill/internal/orchestrator"
	"stock-backfill/internal/queue"
)

// Version is reported by GET /.
const Version = "1.0.0"

// OrchestratorHandlers serves the queue API.
type OrchestratorHandlers struct {
	orch   *orchestrator.Orchestrator
	stream *StatusStream
	clock  clock.Clock
	log    zerolog.Logger
}

// NewOrchestratorHandlers creates the orchestrator handler set.
// streamInterval controls /ws/status pushes; 0 uses the default.
func NewOrchestratorHandlers(orch *orchestrator.Orchestrator, streamInterval time.Duration, clk clock.Clock, log zerolog.Logger) *OrchestratorHandlers {
	l := log.With().Str("module", "orchestrator_api").Logger()
	return &OrchestratorHandlers{
		orch:   orch,
		stream: NewStatusStream(orch.Queue(), streamInterval, l),
		clock:  clock.OrReal(clk),
		log:    l,
	}
}

// RegisterRoutes registers orchestrator routes.
func (h *OrchestratorHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleRoot)
	r.Get("/health", handleHealth)
	r.Get("/status", h.HandleStatus)
	r.Get("/queue/{category}", h.HandleQueue)
	r.Post("/get-batch", h.HandleGetBatch(queue.History))
	r.Post("/get-gap-detection-batch", h.HandleGetBatch(queue.GapDetection))
	r.Post("/refresh", h.HandleRefresh)
	r.Post("/reset", h.HandleReset)
	r.Handle("/metrics", observability.Handler())
	r.Get("/ws/status", h.stream.ServeHTTP)
}

// HandleRoot returns the service banner.
func (h *OrchestratorHandlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, ServiceInfo{Status: "healthy", Service: "Stock Orchestrator", Version: Version})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStatus returns queue counts.
func (h *OrchestratorHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.orch.Queue().Status())
}

// HandleQueue lists the pending and dispatched tickers of one category.
func (h *OrchestratorHandlers) HandleQueue(w http.ResponseWriter, r *http.Request) {
	category, err := queue.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, r, fmt.Errorf("category %q: %w", chi.URLParam(r, "category"), err))
		return
	}
	snap, err := h.orch.Queue().Snapshot(category)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := QueueResponse{
		Category:   string(category),
		Pending:    snap.Pending,
		Dispatched: snap.Dispatched,
	}
	if !snap.LastRefresh.IsZero() {
		resp.LastRefresh = &snap.LastRefresh
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleGetBatch withdraws a batch from category.
// Query: worker_id (optional), limit (optional, default batch size).
func (h *OrchestratorHandlers) HandleGetBatch(category queue.Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerID := r.URL.Query().Get("worker_id")

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, r, fmt.Errorf("limit %q: %w", v, errBadRequest))
				return
			}
			limit = n
		}

		b, err := h.orch.Queue().Withdraw(category, workerID, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, BatchResponse{
			Tickers:          b.Tickers,
			BatchSize:        len(b.Tickers),
			RemainingInQueue: b.Remaining,
			TotalProcessed:   b.Processed,
			Timestamp:        b.TakenAt,
			BatchID:          idhash.ComputeBatchID(string(category), workerID, b.TakenAt.UnixMilli(), b.Tickers),
			Category:         string(category),
			WorkerID:         workerID,
		})
	}
}

// HandleRefresh reseeds both queues from the universe provider.
func (h *OrchestratorHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.orch.Reseed(r.Context()); err != nil {
		writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	h.writeQueueAction(w, r, "Both queues refreshed successfully")
}

// HandleReset requeues dispatched symbols in both queues.
func (h *OrchestratorHandlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.orch.Queue().Reset()
	h.writeQueueAction(w, r, "Both queues reset successfully")
}

func (h *OrchestratorHandlers) writeQueueAction(w http.ResponseWriter, r *http.Request, msg string) {
	st := h.orch.Queue().Status()
	writeJSON(w, r, http.StatusOK, QueueActionResponse{
		Success:           true,
		Message:           msg,
		HistoryQueue:      st.History.Remaining,
		GapDetectionQueue: st.GapDetection.Remaining,
		Timestamp:         h.clock.Now(),
	})
}
