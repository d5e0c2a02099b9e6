package brokers

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/foliosync/internal/clients/tradernet"
	"github.com/foliolabs/foliosync/internal/domain"
)

// tradeFetchLimit caps a single executed-trades fetch. The bridge service
// exposes no pagination, so a response this large may be truncated.
const tradeFetchLimit = 1000

// TradernetAdapter is the full-capability networked broker variant. It owns
// a bridge-service client internally and translates its wire types into the
// shared domain model.
type TradernetAdapter struct {
	connectionID string
	client       *tradernet.Client
	mu           sync.Mutex
	connected    bool
	log          zerolog.Logger
}

// NewTradernetAdapter creates a new Tradernet adapter for one connection.
func NewTradernetAdapter(connectionID, serviceURL string, log zerolog.Logger) *TradernetAdapter {
	return &TradernetAdapter{
		connectionID: connectionID,
		client:       tradernet.NewClient(serviceURL, log),
		log:          log.With().Str("adapter", "tradernet").Str("connection_id", connectionID).Logger(),
	}
}

// BrokerType implements domain.BrokerAdapter
func (a *TradernetAdapter) BrokerType() domain.BrokerType {
	return domain.BrokerTradernet
}

// Connect implements domain.BrokerAdapter. Missing or rejected credentials
// are expected failures and come back as Success=false, not as an error.
func (a *TradernetAdapter) Connect(creds domain.Credentials) (domain.ConnectResult, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return domain.ConnectResult{
			Success: false,
			Error:   "missing API credentials",
		}, nil
	}

	a.client.SetCredentials(creds.APIKey, creds.APISecret)

	health, err := a.client.Health()
	if err != nil {
		return domain.ConnectResult{
			Success: false,
			Error:   fmt.Sprintf("broker rejected connection: %v", err),
		}, nil
	}
	if !health.Connected {
		return domain.ConnectResult{
			Success: false,
			Error:   "broker session not established",
		}, nil
	}

	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()

	a.log.Info().Msg("Connected to Tradernet")

	return domain.ConnectResult{
		Success:      true,
		ConnectionID: a.connectionID,
	}, nil
}

// Disconnect implements domain.BrokerAdapter. Safe to call when not connected.
func (a *TradernetAdapter) Disconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		a.connected = false
		a.log.Info().Msg("Disconnected from Tradernet")
	}
}

// ValidateConnection implements domain.BrokerAdapter
func (a *TradernetAdapter) ValidateConnection() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// GetPortfolio implements domain.BrokerAdapter
func (a *TradernetAdapter) GetPortfolio() (*domain.Portfolio, error) {
	if !a.ValidateConnection() {
		return nil, fmt.Errorf("tradernet connection %s: %w", a.connectionID, domain.ErrNotConnected)
	}

	positions, err := a.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	balances, err := a.client.GetCashBalances()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cash balances: %w", err)
	}

	portfolio := &domain.Portfolio{
		BrokerType:   domain.BrokerTradernet,
		ConnectionID: a.connectionID,
		Positions:    transformPositions(positions),
		CashBalances: transformCashBalances(balances),
		SyncedAt:     time.Now().UTC(),
	}
	portfolio.TotalValue = portfolioTotal(portfolio.Positions, portfolio.CashBalances)

	return portfolio, nil
}

// GetTransactions implements domain.BrokerAdapter. Returns executed trades
// in the half-open range [from, to).
func (a *TradernetAdapter) GetTransactions(from, to time.Time) ([]domain.Transaction, error) {
	if !a.ValidateConnection() {
		return nil, fmt.Errorf("tradernet connection %s: %w", a.connectionID, domain.ErrNotConnected)
	}

	trades, err := a.client.GetExecutedTrades(tradeFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch executed trades: %w", err)
	}
	if len(trades) == tradeFetchLimit {
		a.log.Warn().Int("limit", tradeFetchLimit).
			Msg("Executed trades hit the fetch limit, range may be incomplete")
	}

	transactions := make([]domain.Transaction, 0, len(trades))
	for _, t := range trades {
		executedAt, err := time.Parse(time.RFC3339, t.ExecutedAt)
		if err != nil {
			a.log.Warn().Str("order_id", t.OrderID).Str("executed_at", t.ExecutedAt).
				Msg("Skipping trade with unparseable timestamp")
			continue
		}
		if executedAt.Before(from) || !executedAt.Before(to) {
			continue
		}
		transactions = append(transactions, domain.Transaction{
			ID:       t.OrderID,
			Ticker:   t.Symbol,
			Type:     transactionType(t.Side),
			Quantity: t.Quantity,
			Price:    t.Price,
			Amount:   t.Amount,
			Currency: t.Currency,
			Date:     executedAt,
		})
	}

	return transactions, nil
}

// Capabilities implements domain.BrokerAdapter
func (a *TradernetAdapter) Capabilities() domain.Capabilities {
	return CapabilitiesFor(domain.BrokerTradernet)
}

// transformPositions converts bridge positions to the domain model
func transformPositions(positions []tradernet.Position) []domain.Position {
	result := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		result = append(result, domain.Position{
			Ticker:           p.Symbol,
			ISIN:             p.ISIN,
			Name:             p.Name,
			InstrumentType:   parseInstrumentType(p.InstrumentType),
			Quantity:         p.Quantity,
			AvgPrice:         p.AvgPrice,
			CurrentPrice:     p.CurrentPrice,
			CurrentValue:     p.MarketValue,
			UnrealizedPnL:    p.UnrealizedPnL,
			UnrealizedPnLPct: p.UnrealizedPnLPct,
			Currency:         p.Currency,
		})
	}
	return result
}

// transformCashBalances converts bridge cash balances to the domain model
func transformCashBalances(balances []tradernet.CashBalance) []domain.CashBalance {
	result := make([]domain.CashBalance, 0, len(balances))
	for _, b := range balances {
		result = append(result, domain.CashBalance{
			Currency: b.Currency,
			Amount:   b.Amount,
		})
	}
	return result
}

func parseInstrumentType(s string) domain.InstrumentType {
	switch domain.InstrumentType(s) {
	case domain.InstrumentStock, domain.InstrumentBond, domain.InstrumentETF, domain.InstrumentCurrency:
		return domain.InstrumentType(s)
	}
	return domain.InstrumentOther
}

func transactionType(side string) string {
	switch side {
	case "BUY", "buy":
		return "buy"
	case "SELL", "sell":
		return "sell"
	}
	return side
}

// portfolioTotal sums position values and cash amounts. Cash in foreign
// currencies is summed without conversion; see domain.Portfolio.
func portfolioTotal(positions []domain.Position, cash []domain.CashBalance) float64 {
	total := 0.0
	for _, p := range positions {
		total += p.CurrentValue
	}
	for _, c := range cash {
		total += c.Amount
	}
	return total
}
