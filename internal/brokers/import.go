package brokers

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/foliosync/internal/domain"
	"github.com/foliolabs/foliosync/internal/storage"
)

// ImportAdapter is the capability-limited report-import broker variant.
// It has no network access of its own: a parsed report is handed in through
// SetPortfolioFromImport and served back by GetPortfolio until overwritten.
// The latest snapshot is persisted best-effort so it survives restarts.
type ImportAdapter struct {
	brokerType   domain.BrokerType
	connectionID string
	store        *storage.Store
	mu           sync.RWMutex
	snapshot     *domain.Portfolio
	log          zerolog.Logger
}

// NewImportAdapter creates a report-import adapter for one connection and
// reloads a previously imported snapshot if the store has one.
func NewImportAdapter(bt domain.BrokerType, connectionID string, store *storage.Store, log zerolog.Logger) *ImportAdapter {
	a := &ImportAdapter{
		brokerType:   bt,
		connectionID: connectionID,
		store:        store,
		log:          log.With().Str("adapter", string(bt)).Str("connection_id", connectionID).Logger(),
	}

	if store != nil {
		var snapshot domain.Portfolio
		found, err := store.Get(a.storeKey(), &snapshot)
		if err != nil {
			// Storage faults degrade to an empty snapshot, never fail construction.
			a.log.Warn().Err(err).Msg("Failed to load imported snapshot, starting empty")
		} else if found {
			a.snapshot = &snapshot
		}
	}

	return a
}

func (a *ImportAdapter) storeKey() string {
	return "import:" + a.connectionID
}

// BrokerType implements domain.BrokerAdapter
func (a *ImportAdapter) BrokerType() domain.BrokerType {
	return a.brokerType
}

// Connect implements domain.BrokerAdapter. Import connections have nothing
// to authenticate, so connect always succeeds.
func (a *ImportAdapter) Connect(_ domain.Credentials) (domain.ConnectResult, error) {
	return domain.ConnectResult{
		Success:      true,
		ConnectionID: a.connectionID,
	}, nil
}

// Disconnect implements domain.BrokerAdapter
func (a *ImportAdapter) Disconnect() {}

// ValidateConnection implements domain.BrokerAdapter
func (a *ImportAdapter) ValidateConnection() bool {
	return true
}

// GetPortfolio implements domain.BrokerAdapter. Absent an import it returns
// an empty-but-valid portfolio rather than an error.
func (a *ImportAdapter) GetPortfolio() (*domain.Portfolio, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.snapshot == nil {
		return &domain.Portfolio{
			BrokerType:   a.brokerType,
			ConnectionID: a.connectionID,
			Positions:    []domain.Position{},
			CashBalances: []domain.CashBalance{},
			TotalValue:   0,
			SyncedAt:     time.Now().UTC(),
		}, nil
	}

	p := clonePortfolio(*a.snapshot)
	return &p, nil
}

// GetTransactions implements domain.BrokerAdapter. Import reports carry no
// transaction history, so the result is always empty.
func (a *ImportAdapter) GetTransactions(_, _ time.Time) ([]domain.Transaction, error) {
	return []domain.Transaction{}, nil
}

// Capabilities implements domain.BrokerAdapter
func (a *ImportAdapter) Capabilities() domain.Capabilities {
	return CapabilitiesFor(a.brokerType)
}

// SetPortfolioFromImport implements domain.ReportImporter. The imported
// portfolio replaces the cached snapshot served by GetPortfolio; broker type
// and connection id are stamped so callers cannot mislabel a snapshot.
func (a *ImportAdapter) SetPortfolioFromImport(p domain.Portfolio) error {
	p.BrokerType = a.brokerType
	p.ConnectionID = a.connectionID
	if p.SyncedAt.IsZero() {
		p.SyncedAt = time.Now().UTC()
	}
	if p.TotalValue == 0 {
		p.TotalValue = portfolioTotal(p.Positions, p.CashBalances)
	}

	a.mu.Lock()
	a.snapshot = &p
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Set(a.storeKey(), p); err != nil {
			// Best effort: the in-memory snapshot is already live.
			a.log.Warn().Err(err).Msg("Failed to persist imported snapshot")
		}
	}

	a.log.Info().Int("positions", len(p.Positions)).Float64("total_value", p.TotalValue).
		Msg("Portfolio imported")

	return nil
}

// clonePortfolio deep-copies a portfolio so callers can't mutate the cached
// snapshot through the returned slices.
func clonePortfolio(p domain.Portfolio) domain.Portfolio {
	out := p
	out.Positions = append([]domain.Position(nil), p.Positions...)
	out.CashBalances = append([]domain.CashBalance(nil), p.CashBalances...)
	return out
}
