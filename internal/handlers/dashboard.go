package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "trade_dashboard/internal/errors"
	"trade_dashboard/internal/dashboard"
	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/models"
	"trade_dashboard/internal/notify"
	"trade_dashboard/internal/repository"
	"trade_dashboard/internal/services"
)

// DashboardHandler serves the view snapshots and the user actions.
type DashboardHandler struct {
	dashboard *dashboard.Dashboard
	orders    *services.OrderService
	toasts    *notify.Bus
	fetchLog  *repository.FetchLogRepository
	logger    *logging.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(deps *Dependencies) *DashboardHandler {
	return &DashboardHandler{
		dashboard: deps.Dashboard,
		orders:    deps.Orders,
		toasts:    deps.Toasts,
		fetchLog:  deps.FetchLogRepo,
		logger:    deps.Logger.Component("handlers.dashboard"),
	}
}

// Overview handles GET /dashboard with every view at once.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"holdings":  h.dashboard.Holdings.Snapshot(),
		"positions": h.dashboard.Positions.Snapshot(),
		"orders":    h.dashboard.Orders.Snapshot(),
		"watchlist": h.dashboard.Watchlist.Snapshot(),
	})
}

// Holdings handles GET /api/holdings.
func (h *DashboardHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Holdings.Snapshot())
}

// Positions handles GET /api/positions.
func (h *DashboardHandler) Positions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Positions.Snapshot())
}

// Orders handles GET /api/orders.
func (h *DashboardHandler) Orders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Orders.Snapshot())
}

type orderForm struct {
	Name  string     `json:"name"`
	Qty   flexString `json:"qty"`
	Price flexString `json:"price"`
	Mode  string     `json:"mode"`
}

// PlaceOrder handles POST /api/orders. A placed order refreshes the orders view.
func (h *DashboardHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var form orderForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, err)
		return
	}

	err := h.orders.Place(r.Context(), services.OrderTicket{
		Name:  form.Name,
		Qty:   string(form.Qty),
		Price: string(form.Price),
		Mode:  models.OrderMode(form.Mode),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.dashboard.Orders.Refresh()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// PreviewOrder handles GET /api/orders/preview?qty=&price=.
func (h *DashboardHandler) PreviewOrder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, services.Preview(q.Get("qty"), q.Get("price")))
}

// Watchlist handles GET /api/watchlist.
func (h *DashboardHandler) Watchlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Watchlist.Snapshot())
}

type watchlistForm struct {
	Symbol string     `json:"symbol"`
	Price  flexString `json:"price"`
}

// AddWatchlist handles POST /api/watchlist.
func (h *DashboardHandler) AddWatchlist(w http.ResponseWriter, r *http.Request) {
	var form watchlistForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, err)
		return
	}

	if err := h.dashboard.Watchlist.Add(r.Context(), form.Symbol, string(form.Price)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

// RemoveWatchlist handles DELETE /api/watchlist/{id}.
func (h *DashboardHandler) RemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.dashboard.Watchlist.Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Toasts handles GET /api/toasts.
func (h *DashboardHandler) Toasts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.toasts.Active())
}

// DismissToast handles DELETE /api/toasts/{id}.
func (h *DashboardHandler) DismissToast(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.ValidationField("id", "Invalid toast id"))
		return
	}
	h.toasts.Dismiss(id)
	w.WriteHeader(http.StatusNoContent)
}

// FetchLog handles GET /api/fetch-log?view=&page=&limit=.
func (h *DashboardHandler) FetchLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := 1, repository.DefaultLimit
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, apperrors.ValidationField("page", "page must be a positive integer"))
			return
		}
		page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > repository.MaxLimit {
			writeError(w, apperrors.ValidationField("limit", "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	result, err := h.fetchLog.List(q.Get("view"), repository.PageToPagination(page, limit))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read fetch log")
		writeError(w, apperrors.Internal("failed to read fetch log", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
