package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/twquant/screener/internal/dashboard"
	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/screening"
	"github.com/twquant/screener/internal/store"
	"github.com/twquant/screener/pkg/logger"
)

// overviewSource is the slice of the dashboard service the API needs.
type overviewSource interface {
	Overview(ctx context.Context) *dashboard.Overview
}

// Handler holds the API endpoint implementations.
// ⭐ SSOT: HTTP 處理都在這個結構
type Handler struct {
	manager  *screening.Manager
	provider data.Provider
	store    *store.Store
	overview overviewSource
	hub      *Hub
	log      *logger.Logger
}

// NewHandler wires the endpoint dependencies. A nil dashboard service
// disables the dashboard endpoint.
func NewHandler(manager *screening.Manager, provider data.Provider, st *store.Store,
	dash *dashboard.Service, hub *Hub, log *logger.Logger) *Handler {
	h := &Handler{
		manager:  manager,
		provider: provider,
		store:    st,
		hub:      hub,
		log:      log,
	}
	if dash != nil {
		h.overview = dash
	}
	return h
}

// Health returns server health status
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "screener-api",
	})
}

// ListStrategies returns the registered strategies in run order.
// GET /api/strategies
func (h *Handler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	infos := h.manager.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(infos),
		"strategies": infos,
	})
}

// ScreenOne runs a single strategy against freshly built tables and
// persists the selection.
// POST /api/screen/{key}
func (h *Handler) ScreenOne(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := mux.Vars(r)["key"]

	strategy, ok := h.manager.Get(key)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown strategy %q", key))
		return
	}

	bundle, err := h.provider.Bundle(ctx, strategy.RequiredDataKeys())
	if err != nil {
		h.log.WithError(err).WithField("strategy", key).Error("bundle build failed")
		respondError(w, http.StatusBadGateway, "failed to build data tables")
		return
	}

	result, err := h.manager.Run(ctx, key, bundle)
	if err != nil {
		h.log.WithError(err).WithField("strategy", key).Error("screening failed")
		respondError(w, http.StatusInternalServerError, "screening failed")
		return
	}

	if h.store != nil {
		if err := h.store.SaveSelections(ctx, result); err != nil {
			h.log.WithError(err).WithField("strategy", key).Error("failed to persist selections")
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// ScreenAll runs every strategy, streaming per-strategy progress to the
// websocket subscribers, and persists all selections.
// POST /api/screen
func (h *Handler) ScreenAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bundle, err := h.provider.Bundle(ctx, h.manager.RequiredDataKeys())
	if err != nil {
		h.log.WithError(err).Error("bundle build failed")
		respondError(w, http.StatusBadGateway, "failed to build data tables")
		return
	}

	total := len(h.manager.List())
	if h.hub != nil {
		h.hub.Broadcast(ProgressEvent{Type: "batch_started", Total: total})
	}

	completed := 0
	results := h.manager.RunAllWithProgress(ctx, bundle, func(key string, result *screening.Result) {
		completed++
		if h.hub == nil {
			return
		}
		h.hub.Broadcast(ProgressEvent{
			Type:      "strategy_done",
			Strategy:  key,
			Name:      result.StrategyName,
			Selected:  len(result.Rows),
			Completed: completed,
			Total:     total,
		})
	})

	if h.hub != nil {
		h.hub.Broadcast(ProgressEvent{Type: "batch_finished", Completed: completed, Total: total})
	}

	if h.store != nil {
		if err := h.store.SaveAll(ctx, results); err != nil {
			h.log.WithError(err).Error("failed to persist batch selections")
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"summary": h.manager.Summarize(results),
		"results": results,
	})
}

// Selections returns stored rows for a strategy.
// GET /api/selections/{key}?date=YYYY-MM-DD&top=N
func (h *Handler) Selections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := mux.Vars(r)["key"]
	date := r.URL.Query().Get("date")
	top := queryInt(r, "top", 0)

	recs, err := h.store.Selections(ctx, key, date, top)
	if err != nil {
		h.log.WithError(err).WithField("strategy", key).Error("selection query failed")
		respondError(w, http.StatusInternalServerError, "failed to query selections")
		return
	}

	if len(recs) > 0 {
		date = recs[0].SelectionDate
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategy": key,
		"date":     date,
		"count":    len(recs),
		"items":    recs,
	})
}

// ExportSelections streams stored rows as CSV.
// GET /api/selections/{key}/export?date=YYYY-MM-DD
func (h *Handler) ExportSelections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := mux.Vars(r)["key"]
	date := r.URL.Query().Get("date")

	recs, err := h.store.Selections(ctx, key, date, 0)
	if err != nil {
		h.log.WithError(err).WithField("strategy", key).Error("selection query failed")
		respondError(w, http.StatusInternalServerError, "failed to query selections")
		return
	}
	if len(recs) > 0 {
		date = recs[0].SelectionDate
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_%s.csv"`, key, date))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"selection_date", "strategy_key", "stock_id", "rank", "score", "extra"})
	for _, rec := range recs {
		extra := ""
		if len(rec.Extra) > 0 {
			b, _ := json.Marshal(rec.Extra)
			extra = string(b)
		}
		_ = cw.Write([]string{
			rec.SelectionDate,
			rec.StrategyKey,
			rec.StockID,
			strconv.Itoa(rec.Rank),
			strconv.FormatFloat(rec.Score, 'f', 2, 64),
			extra,
		})
	}
	cw.Flush()
}

// Appearances aggregates the latest stored selection of every strategy.
// GET /api/appearances?min=N
func (h *Handler) Appearances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	min := queryInt(r, "min", 2)

	results := make(map[string]*screening.Result)
	for _, info := range h.manager.List() {
		recs, err := h.store.Selections(ctx, info.Key, "", 0)
		if err != nil {
			h.log.WithError(err).WithField("strategy", info.Key).Error("selection query failed")
			respondError(w, http.StatusInternalServerError, "failed to query selections")
			return
		}
		if len(recs) == 0 {
			continue
		}
		result := &screening.Result{
			StrategyKey:   info.Key,
			StrategyName:  recs[0].StrategyName,
			SelectionDate: recs[0].SelectionDate,
		}
		for _, rec := range recs {
			result.Rows = append(result.Rows, screening.Row{
				StockID: rec.StockID,
				Score:   rec.Score,
				Rank:    rec.Rank,
				Extra:   rec.Extra,
			})
		}
		results[info.Key] = result
	}

	appearances := h.manager.StockAppearances(results, min)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"min_appearances": min,
		"count":           len(appearances),
		"items":           appearances,
	})
}

// Dashboard returns the market-overview snapshot.
// GET /api/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if h.overview == nil {
		respondError(w, http.StatusServiceUnavailable, "dashboard not configured")
		return
	}
	respondJSON(w, http.StatusOK, h.overview.Overview(r.Context()))
}

// GetWatchlist returns the watchlist.
// GET /api/watchlist
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Watchlist(r.Context())
	if err != nil {
		h.log.WithError(err).Error("watchlist query failed")
		respondError(w, http.StatusInternalServerError, "failed to query watchlist")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(entries),
		"items": entries,
	})
}

// AddWatchlist inserts or replaces a watchlist entry.
// POST /api/watchlist
func (h *Handler) AddWatchlist(w http.ResponseWriter, r *http.Request) {
	var entry store.WatchlistEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondError(w, http.StatusBadRequest, "invalid watchlist entry")
		return
	}
	if entry.StockID == "" {
		respondError(w, http.StatusBadRequest, "stock_id is required")
		return
	}

	if err := h.store.AddToWatchlist(r.Context(), entry); err != nil {
		h.log.WithError(err).Error("watchlist insert failed")
		respondError(w, http.StatusInternalServerError, "failed to add watchlist entry")
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

// RemoveWatchlist deletes a watchlist entry.
// DELETE /api/watchlist/{stockID}
func (h *Handler) RemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	stockID := mux.Vars(r)["stockID"]
	if err := h.store.RemoveFromWatchlist(r.Context(), stockID); err != nil {
		h.log.WithError(err).Error("watchlist delete failed")
		respondError(w, http.StatusInternalServerError, "failed to remove watchlist entry")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"removed": stockID})
}

// Progress subscribes the connection to batch-run progress events.
// GET /ws/progress
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "progress stream not configured")
		return
	}
	h.hub.ServeWS(w, r)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
