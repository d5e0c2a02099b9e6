package brokers

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/foliosync/internal/domain"
	"github.com/foliolabs/foliosync/internal/storage"
)

// manualState is the persisted shape of a manual connection's holdings.
type manualState struct {
	Positions    []domain.Position    `json:"positions"`
	CashBalances []domain.CashBalance `json:"cash_balances"`
}

// ManualAdapter is the local broker variant. It is always available (no
// Connect is required) and exposes the only write paths of the adapter
// contract: upsert/remove position and wholesale cash replacement. State is
// persisted best-effort after every mutation.
type ManualAdapter struct {
	connectionID string
	store        *storage.Store
	mu           sync.RWMutex
	state        manualState
	log          zerolog.Logger
}

// NewManualAdapter creates a manual adapter for one connection, reloading
// any persisted holdings.
func NewManualAdapter(connectionID string, store *storage.Store, log zerolog.Logger) *ManualAdapter {
	a := &ManualAdapter{
		connectionID: connectionID,
		store:        store,
		log:          log.With().Str("adapter", "manual").Str("connection_id", connectionID).Logger(),
	}

	if store != nil {
		var state manualState
		found, err := store.Get(a.storeKey(), &state)
		if err != nil {
			a.log.Warn().Err(err).Msg("Failed to load manual holdings, starting empty")
		} else if found {
			a.state = state
		}
	}

	return a
}

func (a *ManualAdapter) storeKey() string {
	return "manual:" + a.connectionID
}

// BrokerType implements domain.BrokerAdapter
func (a *ManualAdapter) BrokerType() domain.BrokerType {
	return domain.BrokerManual
}

// Connect implements domain.BrokerAdapter. Manual connections are always
// available.
func (a *ManualAdapter) Connect(_ domain.Credentials) (domain.ConnectResult, error) {
	return domain.ConnectResult{
		Success:      true,
		ConnectionID: a.connectionID,
	}, nil
}

// Disconnect implements domain.BrokerAdapter
func (a *ManualAdapter) Disconnect() {}

// ValidateConnection implements domain.BrokerAdapter
func (a *ManualAdapter) ValidateConnection() bool {
	return true
}

// GetPortfolio implements domain.BrokerAdapter. A fresh portfolio is built
// on every call; totals are recomputed from the current holdings.
func (a *ManualAdapter) GetPortfolio() (*domain.Portfolio, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	positions := append([]domain.Position(nil), a.state.Positions...)
	cash := append([]domain.CashBalance(nil), a.state.CashBalances...)
	if positions == nil {
		positions = []domain.Position{}
	}
	if cash == nil {
		cash = []domain.CashBalance{}
	}

	return &domain.Portfolio{
		BrokerType:   domain.BrokerManual,
		ConnectionID: a.connectionID,
		Positions:    positions,
		CashBalances: cash,
		TotalValue:   portfolioTotal(positions, cash),
		SyncedAt:     time.Now().UTC(),
	}, nil
}

// GetTransactions implements domain.BrokerAdapter. Manual connections keep
// no transaction history.
func (a *ManualAdapter) GetTransactions(_, _ time.Time) ([]domain.Transaction, error) {
	return []domain.Transaction{}, nil
}

// Capabilities implements domain.BrokerAdapter
func (a *ManualAdapter) Capabilities() domain.Capabilities {
	return CapabilitiesFor(domain.BrokerManual)
}

// UpsertPosition implements domain.ManualWriter. A later add with the same
// ticker replaces the existing entry in place; quantities are never merged.
func (a *ManualAdapter) UpsertPosition(p domain.Position) error {
	a.mu.Lock()
	replaced := false
	for i := range a.state.Positions {
		if a.state.Positions[i].Ticker == p.Ticker {
			a.state.Positions[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		a.state.Positions = append(a.state.Positions, p)
	}
	a.mu.Unlock()

	a.persist()
	a.log.Debug().Str("ticker", p.Ticker).Bool("replaced", replaced).Msg("Position upserted")
	return nil
}

// RemovePosition implements domain.ManualWriter. Removing an absent ticker
// is a no-op.
func (a *ManualAdapter) RemovePosition(ticker string) error {
	a.mu.Lock()
	for i := range a.state.Positions {
		if a.state.Positions[i].Ticker == ticker {
			a.state.Positions = append(a.state.Positions[:i], a.state.Positions[i+1:]...)
			break
		}
	}
	a.mu.Unlock()

	a.persist()
	return nil
}

// SetCashBalances implements domain.ManualWriter. Balances are replaced
// wholesale.
func (a *ManualAdapter) SetCashBalances(balances []domain.CashBalance) error {
	a.mu.Lock()
	a.state.CashBalances = append([]domain.CashBalance(nil), balances...)
	a.mu.Unlock()

	a.persist()
	return nil
}

// persist writes the current holdings to the store. Storage faults are
// logged and swallowed; the in-memory state stays authoritative.
func (a *ManualAdapter) persist() {
	if a.store == nil {
		return
	}

	a.mu.RLock()
	state := manualState{
		Positions:    append([]domain.Position(nil), a.state.Positions...),
		CashBalances: append([]domain.CashBalance(nil), a.state.CashBalances...),
	}
	a.mu.RUnlock()

	if err := a.store.Set(a.storeKey(), state); err != nil {
		a.log.Warn().Err(err).Msg("Failed to persist manual holdings")
	}
}
