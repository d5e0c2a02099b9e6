package domain

import (
	"errors"
	"time"
)

// ErrNotConnected is returned by connection-requiring adapters when portfolio
// or transaction data is requested before a successful Connect.
var ErrNotConnected = errors.New("broker not connected")

// Credentials carries broker authentication material supplied at connect
// time. Which fields matter is adapter-specific; manual and import adapters
// ignore them entirely.
type Credentials struct {
	APIKey    string `json:"api_key,omitempty"`
	APISecret string `json:"api_secret,omitempty"`
}

// ConnectResult is the structured outcome of a connect attempt. Expected
// failures (missing or rejected credentials) are reported with Success=false
// and a human-readable Error instead of a Go error, so callers can render
// them without a generic catch-all.
type ConnectResult struct {
	Success      bool   `json:"success"`
	ConnectionID string `json:"connection_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Capabilities describes what a broker type supports. Capabilities are fixed
// per broker type and never mutated at runtime.
type Capabilities struct {
	SupportsRealTimeSync       bool     `json:"supports_real_time_sync"`
	SupportsTransactionHistory bool     `json:"supports_transaction_history"`
	SupportsDividendInfo       bool     `json:"supports_dividend_info"`
	SupportsReportImport       bool     `json:"supports_report_import"`
	SupportedReportFormats     []string `json:"supported_report_formats,omitempty"` // Non-empty iff SupportsReportImport
	MaxRequestsPerMinute       int      `json:"max_requests_per_minute"`            // 0 when rate limiting does not apply
}

// BrokerAdapter is the uniform capability contract every broker variant
// implements. Adapters define no cancellation or timeout behavior of their
// own; the orchestrator imposes external deadlines where needed.
type BrokerAdapter interface {
	// BrokerType returns the broker type this adapter serves.
	BrokerType() BrokerType

	// Connect establishes a session. Expected failures come back as
	// Success=false in the result; only internal faults return an error.
	Connect(creds Credentials) (ConnectResult, error)

	// Disconnect releases session state. Idempotent.
	Disconnect()

	// ValidateConnection reports whether a prior Connect succeeded and has
	// not been invalidated by Disconnect. It performs no network I/O.
	ValidateConnection() bool

	// GetPortfolio returns a fresh snapshot of the account. Connection-
	// requiring adapters fail with ErrNotConnected before a successful
	// Connect.
	GetPortfolio() (*Portfolio, error)

	// GetTransactions returns transactions in the half-open range
	// [from, to). An empty result is valid, not an error.
	GetTransactions(from, to time.Time) ([]Transaction, error)

	// Capabilities returns the fixed capability set for this broker type.
	Capabilities() Capabilities
}

// ReportImporter is the side channel exposed by report-import brokers.
// An imported portfolio replaces the snapshot returned by subsequent
// GetPortfolio calls until overwritten again.
type ReportImporter interface {
	SetPortfolioFromImport(p Portfolio) error
}

// ManualWriter is the local mutation surface of the manual broker, the only
// write paths into the otherwise read-oriented adapter contract.
type ManualWriter interface {
	// UpsertPosition adds a position or replaces the existing one with the
	// same ticker. Replacement never merges quantities.
	UpsertPosition(p Position) error

	// RemovePosition removes a position by ticker. Removing an absent
	// ticker is a no-op.
	RemovePosition(ticker string) error

	// SetCashBalances replaces all cash balances wholesale.
	SetCashBalances(balances []CashBalance) error
}
