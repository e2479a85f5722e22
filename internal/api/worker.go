package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"stock-backfill/internal/backfill"
	"stock-backfill/internal/clock"
	"stock-backfill/internal/domain"
	"stock-backfill/internal/gaps"
	"stock-backfill/internal/observability"
	"stock-backfill/internal/storage"
)

// WorkerHandlers serves the worker operator API.
type WorkerHandlers struct {
	detector  *gaps.Detector
	executor  *backfill.Executor
	bars      storage.BarStore
	blacklist storage.BlacklistStore
	cooldown  *backfill.CooldownTracker
	clock     clock.Clock
	log       zerolog.Logger
}

// WorkerHandlersOptions contains dependencies for WorkerHandlers.
type WorkerHandlersOptions struct {
	Detector       *gaps.Detector
	Executor       *backfill.Executor
	BarStore       storage.BarStore
	BlacklistStore storage.BlacklistStore
	Cooldown       *backfill.CooldownTracker
	Clock          clock.Clock
	Logger         zerolog.Logger
}

// NewWorkerHandlers creates the worker handler set.
func NewWorkerHandlers(opts WorkerHandlersOptions) *WorkerHandlers {
	return &WorkerHandlers{
		detector:  opts.Detector,
		executor:  opts.Executor,
		bars:      opts.BarStore,
		blacklist: opts.BlacklistStore,
		cooldown:  opts.Cooldown,
		clock:     clock.OrReal(opts.Clock),
		log:       opts.Logger.With().Str("module", "worker_api").Logger(),
	}
}

// RegisterRoutes registers worker routes.
func (h *WorkerHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleRoot)
	r.Get("/health", handleHealth)
	r.Get("/rate-limit-status", h.HandleRateLimitStatus)
	r.Get("/blacklist", h.HandleGetBlacklist)
	r.Delete("/blacklist", h.HandleClearBlacklist)
	r.Get("/gaps/{symbol}", h.HandleCheckGaps)
	r.Post("/gaps/{symbol}/fill", h.HandleFillGaps)
	r.Post("/history/{symbol}", h.HandleRefreshHistory)
	r.Get("/bars/{symbol}", h.HandleGetBars)
	r.Handle("/metrics", observability.Handler())
}

// HandleRoot returns the service banner.
func (h *WorkerHandlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, ServiceInfo{Status: "healthy", Service: "Stock Data Fetcher Worker", Version: Version})
}

// HandleRateLimitStatus reports the cooldown state.
func (h *WorkerHandlers) HandleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	until, active := h.cooldown.Status()
	if !active {
		writeJSON(w, r, http.StatusOK, RateLimitResponse{
			Status:  "available",
			Message: "Service is available",
		})
		return
	}

	writeJSON(w, r, http.StatusOK, RateLimitResponse{
		RateLimited:       true,
		Status:            "limited",
		Message:           "Service is rate limited",
		ResetTime:         &until,
		SecondsUntilReset: int(h.cooldown.Remaining().Seconds()),
	})
}

// tickerFilter returns the normalized ?ticker= value, or nil when absent.
func tickerFilter(r *http.Request) (*string, error) {
	raw := r.URL.Query().Get("ticker")
	if raw == "" {
		return nil, nil
	}
	sym, err := domain.NormalizeSymbol(raw)
	if err != nil {
		return nil, err
	}
	return &sym, nil
}

// HandleGetBlacklist lists entries, optionally for one ticker.
func (h *WorkerHandlers) HandleGetBlacklist(w http.ResponseWriter, r *http.Request) {
	filter, err := tickerFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	symbol := ""
	if filter != nil {
		symbol = *filter
	}
	entries, err := h.blacklist.List(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Msg("list blacklist")
		writeError(w, r, fmt.Errorf("list blacklist: %w", err))
		return
	}

	resp := BlacklistResponse{
		Count:        len(entries),
		TickerFilter: filter,
		Entries:      make([]BlacklistEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toBlacklistEntry(e))
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleClearBlacklist deletes entries for one ticker, or all.
func (h *WorkerHandlers) HandleClearBlacklist(w http.ResponseWriter, r *http.Request) {
	filter, err := tickerFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	symbol := ""
	if filter != nil {
		symbol = *filter
	}
	n, err := h.blacklist.Delete(r.Context(), symbol)
	if err != nil {
		writeError(w, r, fmt.Errorf("clear blacklist: %w", err))
		return
	}

	h.log.Info().Int("cleared", n).Str("ticker", symbol).Msg("blacklist cleared")
	writeJSON(w, r, http.StatusOK, ClearBlacklistResponse{Cleared: n, TickerFilter: filter})
}

// HandleCheckGaps returns unsuppressed gaps for {symbol}.
func (h *WorkerHandlers) HandleCheckGaps(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	found, err := h.detector.CheckGaps(r.Context(), symbol)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sym, _ := domain.NormalizeSymbol(symbol)
	resp := GapsResponse{Symbol: sym, Count: len(found), Gaps: make([]GapResponse, 0, len(found))}
	for _, g := range found {
		resp.Gaps = append(resp.Gaps, toGap(g))
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleFillGaps runs the backfill executor for {symbol}.
// Query: max_retries (optional, default from configuration).
func (h *WorkerHandlers) HandleFillGaps(w http.ResponseWriter, r *http.Request) {
	maxRetries := h.executor.MaxRetries()
	if v := r.URL.Query().Get("max_retries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("max_retries %q: %w", v, errBadRequest))
			return
		}
		maxRetries = n
	}

	outcome, err := h.executor.FillGaps(r.Context(), chi.URLParam(r, "symbol"), maxRetries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, outcome)
}

// HandleRefreshHistory refreshes the full history of {symbol}.
func (h *WorkerHandlers) HandleRefreshHistory(w http.ResponseWriter, r *http.Request) {
	result, err := h.executor.RefreshHistory(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleGetBars returns stored bars for {symbol}.
// Query: band (default coarse), start and end (RFC3339, default the band's window).
func (h *WorkerHandlers) HandleGetBars(w http.ResponseWriter, r *http.Request) {
	sym, err := domain.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	band := domain.BandCoarse
	if v := q.Get("band"); v != "" {
		if band, err = domain.ParseBand(v); err != nil {
			writeError(w, r, err)
			return
		}
	}

	end := h.clock.Now()
	if v := q.Get("end"); v != "" {
		if end, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, r, fmt.Errorf("end %q: %w", v, errBadRequest))
			return
		}
	}
	start := end.Add(-h.detector.Config().Policy(band).Window)
	if v := q.Get("start"); v != "" {
		if start, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, r, fmt.Errorf("start %q: %w", v, errBadRequest))
			return
		}
	}
	if end.Before(start) {
		writeError(w, r, fmt.Errorf("end before start: %w", errBadRequest))
		return
	}

	bars, err := h.bars.GetByTimeRange(r.Context(), sym, band, start, end)
	if err != nil {
		writeError(w, r, fmt.Errorf("query bars: %w", err))
		return
	}

	resp := BarsResponse{Symbol: sym, Band: band.String(), Count: len(bars), Bars: make([]BarResponse, 0, len(bars))}
	for _, b := range bars {
		resp.Bars = append(resp.Bars, toBar(b))
	}
	writeJSON(w, r, http.StatusOK, resp)
}
