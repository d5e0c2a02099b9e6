package domain

import (
	"fmt"
	"time"
)

// BrokerType identifies a supported broker. The set is closed: adding a
// broker requires both a new constant here and a constructor case in the
// adapter factory, which is verified at start-up.
type BrokerType string

const (
	BrokerTradernet BrokerType = "tradernet"
	BrokerDegiro    BrokerType = "degiro"
	BrokerManual    BrokerType = "manual"
)

// AllBrokerTypes is the canonical closed enumeration, used by the adapter
// factory's exhaustiveness check.
var AllBrokerTypes = []BrokerType{
	BrokerTradernet,
	BrokerDegiro,
	BrokerManual,
}

// ParseBrokerType validates a raw string against the closed enumeration.
func ParseBrokerType(s string) (BrokerType, error) {
	for _, bt := range AllBrokerTypes {
		if string(bt) == s {
			return bt, nil
		}
	}
	return "", fmt.Errorf("unknown broker type %q", s)
}

// ConnectionMethod describes how a connection gets its data.
type ConnectionMethod string

const (
	MethodAPI    ConnectionMethod = "api"
	MethodManual ConnectionMethod = "manual"
	MethodImport ConnectionMethod = "import"
)

// ConnectionStatus is the lifecycle state of a broker connection.
//
// State machine: pending_auth → active on successful connect;
// active ⇄ error on sync success/failure; active|error → disconnected on
// explicit disconnect. Nothing leaves disconnected without a fresh connect.
type ConnectionStatus string

const (
	StatusActive       ConnectionStatus = "active"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
	StatusPendingAuth  ConnectionStatus = "pending_auth"
)

// BrokerConnection is the persisted record of a user's link to a broker.
// The persisted store is the sole source of truth across restarts; live
// adapters are reconstructed from these records at boot.
type BrokerConnection struct {
	ID             string           `json:"id"`
	BrokerType     BrokerType       `json:"broker_type"`
	DisplayName    string           `json:"display_name"`
	Method         ConnectionMethod `json:"method"`
	Status         ConnectionStatus `json:"status"`
	LastSyncAt     *time.Time       `json:"last_sync_at,omitempty"`
	LastSyncStatus SyncStatus       `json:"last_sync_status,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
