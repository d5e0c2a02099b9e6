// Package domain holds the shared value types and contracts used across
// FolioSync. It is intentionally dependency-free so that adapters, the
// registry and the orchestrator can all share it without import cycles.
package domain

import "time"

// InstrumentType classifies a holding.
type InstrumentType string

const (
	InstrumentStock    InstrumentType = "stock"
	InstrumentBond     InstrumentType = "bond"
	InstrumentETF      InstrumentType = "etf"
	InstrumentCurrency InstrumentType = "currency"
	InstrumentOther    InstrumentType = "other"
)

// Position represents one holding within one broker account.
// Positions are immutable once returned to callers; copy before mutating.
type Position struct {
	Ticker           string         `json:"ticker"` // Broker-local symbol, non-empty
	ISIN             string         `json:"isin,omitempty"`
	Name             string         `json:"name"`
	InstrumentType   InstrumentType `json:"instrument_type"`
	Quantity         float64        `json:"quantity"`
	AvgPrice         float64        `json:"avg_price"` // Average acquisition price
	CurrentPrice     float64        `json:"current_price"`
	CurrentValue     float64        `json:"current_value"` // ≈ quantity × current price, as reported by the broker
	UnrealizedPnL    float64        `json:"unrealized_pnl"`
	UnrealizedPnLPct float64        `json:"unrealized_pnl_pct"`
	Currency         string         `json:"currency"`
}

// CashBalance represents cash held in one currency at one broker.
type CashBalance struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// Portfolio is a broker account's full state at a sync instant.
// Adapters create a fresh Portfolio on every GetPortfolio call and ownership
// transfers to the caller.
//
// TotalValue sums position values and cash amounts in a single reporting
// currency; cross-currency cash is summed without conversion. This is a known
// simplification carried over deliberately.
type Portfolio struct {
	BrokerType   BrokerType    `json:"broker_type"`
	ConnectionID string        `json:"connection_id"`
	Positions    []Position    `json:"positions"`
	CashBalances []CashBalance `json:"cash_balances"`
	TotalValue   float64       `json:"total_value"`
	SyncedAt     time.Time     `json:"synced_at"`
}

// Transaction represents a single account transaction.
type Transaction struct {
	ID          string    `json:"id"`
	Ticker      string    `json:"ticker"`
	Type        string    `json:"type"` // "buy", "sell", "dividend", "deposit", "withdrawal"
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`
}

// BrokerHolding is one broker's contribution to a consolidated position.
type BrokerHolding struct {
	BrokerType   BrokerType `json:"broker_type"`
	ConnectionID string     `json:"connection_id"`
	Quantity     float64    `json:"quantity"`
	AvgPrice     float64    `json:"avg_price"`
	CurrentValue float64    `json:"current_value"`
}

// ConsolidatedPosition merges all holdings of one ticker across brokers.
// Name and InstrumentType come from the first portfolio encountered that
// holds the ticker.
type ConsolidatedPosition struct {
	Ticker           string          `json:"ticker"`
	Name             string          `json:"name"`
	InstrumentType   InstrumentType  `json:"instrument_type"`
	Holdings         []BrokerHolding `json:"holdings"`
	TotalQuantity    float64         `json:"total_quantity"`
	WeightedAvgPrice float64         `json:"weighted_avg_price"` // Cost-basis weighted; 0 when quantity is 0
	TotalValue       float64         `json:"total_value"`
	TotalPnL         float64         `json:"total_pnl"`
}

// AggregatedPortfolio is the single consolidated read model.
//
// TotalValue sums raw portfolio totals (cash included) while TotalPnL sums
// only position-level PnL; cash has no PnL, so the asymmetry is intentional.
// SyncedAt is the earliest SyncedAt among inputs; the view is only as fresh
// as its stalest source.
type AggregatedPortfolio struct {
	Portfolios            []Portfolio            `json:"portfolios"`
	ConsolidatedPositions []ConsolidatedPosition `json:"consolidated_positions"`
	TotalValue            float64                `json:"total_value"`
	TotalPnL              float64                `json:"total_pnl"`
	SyncedAt              time.Time              `json:"synced_at"`
}

// SyncStatus is the outcome classification of one sync attempt.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// SyncResult is the outcome of one sync attempt for one connection.
// It is returned to the caller and never persisted.
type SyncResult struct {
	ConnectionID string     `json:"connection_id"`
	BrokerType   BrokerType `json:"broker_type"`
	Status       SyncStatus `json:"status"`
	Error        string     `json:"error,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}
