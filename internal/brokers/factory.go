package brokers

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/foliolabs/foliosync/internal/domain"
	"github.com/foliolabs/foliosync/internal/storage"
)

// Deps bundles the collaborators adapters need. The registry owns one Deps
// value and passes it to every construction.
type Deps struct {
	Store               *storage.Store
	TradernetServiceURL string
	Log                 zerolog.Logger
}

// New constructs the adapter for a broker type. The switch is the single
// closed mapping from broker type to constructor: every value of
// domain.AllBrokerTypes must have a case here, and VerifyFactory enforces
// that at start-up. Do not add a default constructor branch.
func New(bt domain.BrokerType, connectionID string, deps Deps) (domain.BrokerAdapter, error) {
	switch bt {
	case domain.BrokerTradernet:
		return NewTradernetAdapter(connectionID, deps.TradernetServiceURL, deps.Log), nil
	case domain.BrokerDegiro:
		return NewImportAdapter(domain.BrokerDegiro, connectionID, deps.Store, deps.Log), nil
	case domain.BrokerManual:
		return NewManualAdapter(connectionID, deps.Store, deps.Log), nil
	}
	return nil, fmt.Errorf("no adapter constructor for broker type %q", bt)
}

// VerifyFactory checks at start-up that every enumerated broker type has a
// constructor case and a capability entry. A new broker type that silently
// falls through would otherwise only surface when a user adds a connection.
func VerifyFactory(deps Deps) error {
	for _, bt := range domain.AllBrokerTypes {
		adapter, err := New(bt, "verify", deps)
		if err != nil {
			return fmt.Errorf("broker type %q has no constructor: %w", bt, err)
		}
		if adapter == nil {
			return fmt.Errorf("constructor for broker type %q returned nil", bt)
		}
		caps, ok := capabilityTable[bt]
		if !ok {
			return fmt.Errorf("broker type %q has no capability entry", bt)
		}
		if caps.SupportsReportImport != (len(caps.SupportedReportFormats) > 0) {
			return fmt.Errorf("broker type %q has inconsistent report import capabilities", bt)
		}
	}
	return nil
}
