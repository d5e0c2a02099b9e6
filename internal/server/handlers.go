package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/foliolabs/foliosync/internal/consolidation"
	"github.com/foliolabs/foliosync/internal/domain"
	"github.com/foliolabs/foliosync/internal/events"
	"github.com/foliolabs/foliosync/internal/orchestrator"
	"github.com/foliolabs/foliosync/internal/registry"
)

// Handlers bundles the API handlers over the registry and orchestrator.
type Handlers struct {
	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
	events       *events.Manager
	log          zerolog.Logger
}

// NewHandlers creates the handler set
func NewHandlers(reg *registry.Registry, orch *orchestrator.Orchestrator, ev *events.Manager, log zerolog.Logger) *Handlers {
	return &Handlers{
		registry:     reg,
		orchestrator: orch,
		events:       ev,
		log:          log.With().Str("component", "handlers").Logger(),
	}
}

// ListConnections returns all persisted broker connections
func (h *Handlers) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns := h.registry.Connections()
	if conns == nil {
		conns = []domain.BrokerConnection{}
	}
	respondJSON(w, http.StatusOK, conns)
}

type addConnectionRequest struct {
	BrokerType  string `json:"broker_type"`
	DisplayName string `json:"display_name"`
	Method      string `json:"method"`
}

// AddConnection creates a new broker connection
func (h *Handlers) AddConnection(w http.ResponseWriter, r *http.Request) {
	var req addConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bt, err := domain.ParseBrokerType(req.BrokerType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	method := domain.ConnectionMethod(req.Method)
	switch method {
	case domain.MethodAPI, domain.MethodManual, domain.MethodImport:
	default:
		respondError(w, http.StatusBadRequest, "method must be one of api, manual, import")
		return
	}

	conn, err := h.registry.AddConnection(bt, req.DisplayName, method)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, conn)
}

// RemoveConnection removes a connection and its live adapter
func (h *Handlers) RemoveConnection(w http.ResponseWriter, r *http.Request) {
	h.registry.RemoveConnection(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// Connect establishes a broker session for a connection
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	adapter, ok := h.registry.GetAdapter(id)
	if !ok {
		respondError(w, http.StatusNotFound, "connection not found")
		return
	}

	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := adapter.Connect(creds)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if result.Success {
		h.registry.UpdateConnectionStatus(id, domain.StatusActive, nil)
	}

	respondJSON(w, http.StatusOK, result)
}

// Disconnect releases a connection's broker session
func (h *Handlers) Disconnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	adapter, ok := h.registry.GetAdapter(id)
	if !ok {
		respondError(w, http.StatusNotFound, "connection not found")
		return
	}

	adapter.Disconnect()
	h.registry.UpdateConnectionStatus(id, domain.StatusDisconnected, nil)
	w.WriteHeader(http.StatusNoContent)
}

// GetCapabilities returns the fixed capability set of a connection's broker
func (h *Handlers) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	adapter, ok := h.registry.GetAdapter(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "connection not found")
		return
	}
	respondJSON(w, http.StatusOK, adapter.Capabilities())
}

// SyncAll triggers a full sync and returns the per-connection results
func (h *Handlers) SyncAll(w http.ResponseWriter, r *http.Request) {
	results := h.orchestrator.SyncAll()
	respondJSON(w, http.StatusOK, results)
}

// SyncBroker triggers a sync for one connection
func (h *Handlers) SyncBroker(w http.ResponseWriter, r *http.Request) {
	result := h.orchestrator.SyncBroker(chi.URLParam(r, "id"))
	respondJSON(w, http.StatusOK, result)
}

// GetAggregatedPortfolio returns the consolidated view over all cached
// portfolios
func (h *Handlers) GetAggregatedPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolios := h.orchestrator.GetAllCachedPortfolios()
	respondJSON(w, http.StatusOK, consolidation.AggregatePortfolios(portfolios))
}

// GetCachedPortfolio returns the last-known-good portfolio for a connection
func (h *Handlers) GetCachedPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, ok := h.orchestrator.GetCachedPortfolio(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "no cached portfolio for connection")
		return
	}
	respondJSON(w, http.StatusOK, portfolio)
}

// GetTransactions returns a connection's transactions in [from, to)
func (h *Handlers) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	adapter, ok := h.registry.GetAdapter(id)
	if !ok {
		respondError(w, http.StatusNotFound, "connection not found")
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := adapter.GetTransactions(from, to)
	if err != nil {
		if errors.Is(err, domain.ErrNotConnected) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, transactions)
}

// ImportPortfolio feeds a parsed report into an import-capable connection
func (h *Handlers) ImportPortfolio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	adapter, ok := h.registry.GetAdapter(id)
	if !ok {
		respondError(w, http.StatusNotFound, "connection not found")
		return
	}

	importer, ok := adapter.(domain.ReportImporter)
	if !ok {
		respondError(w, http.StatusBadRequest, "broker does not support report import")
		return
	}

	var portfolio domain.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&portfolio); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := importer.SetPortfolioFromImport(portfolio); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.events.Emit(events.PortfolioImported, "server", map[string]interface{}{
		"connection_id": id,
		"positions":     len(portfolio.Positions),
	})

	w.WriteHeader(http.StatusNoContent)
}

// UpsertPosition adds or replaces a position on a manual connection
func (h *Handlers) UpsertPosition(w http.ResponseWriter, r *http.Request) {
	writer, ok := h.manualWriter(w, r)
	if !ok {
		return
	}

	var position domain.Position
	if err := json.NewDecoder(r.Body).Decode(&position); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if position.Ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	if err := writer.UpsertPosition(position); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemovePosition removes a position from a manual connection by ticker
func (h *Handlers) RemovePosition(w http.ResponseWriter, r *http.Request) {
	writer, ok := h.manualWriter(w, r)
	if !ok {
		return
	}

	if err := writer.RemovePosition(chi.URLParam(r, "ticker")); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCashBalances replaces a manual connection's cash balances wholesale
func (h *Handlers) SetCashBalances(w http.ResponseWriter, r *http.Request) {
	writer, ok := h.manualWriter(w, r)
	if !ok {
		return
	}

	var balances []domain.CashBalance
	if err := json.NewDecoder(r.Body).Decode(&balances); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := writer.SetCashBalances(balances); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// manualWriter resolves the adapter for the request and asserts the manual
// mutation surface, writing the error response itself on failure.
func (h *Handlers) manualWriter(w http.ResponseWriter, r *http.Request) (domain.ManualWriter, bool) {
	adapter, ok := h.registry.GetAdapter(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "connection not found")
		return nil, false
	}

	writer, ok := adapter.(domain.ManualWriter)
	if !ok {
		respondError(w, http.StatusBadRequest, "broker does not support local mutations")
		return nil, false
	}
	return writer, true
}

// parseDateRange reads from/to query params as RFC 3339 or YYYY-MM-DD.
// Defaults: from = beginning of time, to = now.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC()

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}

	return from, to, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
