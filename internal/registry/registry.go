// Package registry owns the mapping from connection identity to live broker
// adapter and the persisted list of connection records. It is the only
// component allowed to construct adapters.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foliolabs/foliosync/internal/brokers"
	"github.com/foliolabs/foliosync/internal/domain"
	"github.com/foliolabs/foliosync/internal/events"
	"github.com/foliolabs/foliosync/internal/storage"
)

// connectionsKey addresses the persisted connection list in the store.
const connectionsKey = "broker_connections"

// Registry manages adapter lifecycle against persisted connection records.
// The live adapter map is volatile and reconstructed from the store at boot
// via InitializeAdapters; the store is the sole source of truth across
// restarts.
type Registry struct {
	store  *storage.Store
	deps   brokers.Deps
	events *events.Manager
	log    zerolog.Logger

	mu       sync.RWMutex // guards adapters
	adapters map[string]domain.BrokerAdapter

	// storeMu serializes read-modify-write cycles on the persisted
	// connection list so concurrent status updates to different ids
	// cannot lose each other's writes.
	storeMu sync.Mutex
}

// New creates a registry. VerifyFactory is the caller's responsibility at
// boot; the registry assumes the broker-type mapping is total.
func New(store *storage.Store, deps brokers.Deps, ev *events.Manager, log zerolog.Logger) *Registry {
	return &Registry{
		store:    store,
		deps:     deps,
		events:   ev,
		adapters: make(map[string]domain.BrokerAdapter),
		log:      log.With().Str("service", "registry").Logger(),
	}
}

// Connections returns the persisted connection records in stored order.
// A storage fault degrades to an empty list; it never propagates.
func (r *Registry) Connections() []domain.BrokerConnection {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	return r.loadConnections()
}

// Connection returns a single persisted record by id.
func (r *Registry) Connection(id string) (domain.BrokerConnection, bool) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	for _, c := range r.loadConnections() {
		if c.ID == id {
			return c, true
		}
	}
	return domain.BrokerConnection{}, false
}

// AddConnection generates a new unique id, constructs the matching adapter,
// persists the record and registers the adapter in the live map.
func (r *Registry) AddConnection(bt domain.BrokerType, displayName string, method domain.ConnectionMethod) (domain.BrokerConnection, error) {
	id := uuid.NewString()

	adapter, err := brokers.New(bt, id, r.deps)
	if err != nil {
		return domain.BrokerConnection{}, fmt.Errorf("failed to construct adapter: %w", err)
	}

	// API-backed connections need a connect before their first sync;
	// manual and import connections are available immediately.
	status := domain.StatusPendingAuth
	if method != domain.MethodAPI {
		status = domain.StatusActive
	}

	conn := domain.BrokerConnection{
		ID:          id,
		BrokerType:  bt,
		DisplayName: displayName,
		Method:      method,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}

	r.storeMu.Lock()
	conns := r.loadConnections()
	conns = append(conns, conn)
	r.saveConnections(conns)
	r.storeMu.Unlock()

	r.mu.Lock()
	r.adapters[id] = adapter
	r.mu.Unlock()

	r.events.Emit(events.ConnectionAdded, "registry", map[string]interface{}{
		"connection_id": id,
		"broker_type":   string(bt),
	})

	return conn, nil
}

// RemoveConnection drops the live adapter (absence is not an error) and
// removes the persisted record.
func (r *Registry) RemoveConnection(id string) {
	r.mu.Lock()
	if adapter, ok := r.adapters[id]; ok {
		adapter.Disconnect()
		delete(r.adapters, id)
	}
	r.mu.Unlock()

	r.storeMu.Lock()
	conns := r.loadConnections()
	filtered := conns[:0]
	for _, c := range conns {
		if c.ID != id {
			filtered = append(filtered, c)
		}
	}
	r.saveConnections(filtered)
	r.storeMu.Unlock()

	r.events.Emit(events.ConnectionRemoved, "registry", map[string]interface{}{
		"connection_id": id,
	})
}

// UpdateConnectionStatus mutates only the matching persisted record. When
// syncStatus is supplied it also stamps LastSyncAt with the current time.
// An unknown id is a no-op, not an error.
func (r *Registry) UpdateConnectionStatus(id string, status domain.ConnectionStatus, syncStatus *domain.SyncStatus) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()

	conns := r.loadConnections()
	for i := range conns {
		if conns[i].ID != id {
			continue
		}
		conns[i].Status = status
		if syncStatus != nil {
			now := time.Now().UTC()
			conns[i].LastSyncAt = &now
			conns[i].LastSyncStatus = *syncStatus
		}
		r.saveConnections(conns)
		return
	}
}

// InitializeAdapters reconciles the live map against the persisted store at
// process start: every persisted connection lacking a live adapter gets one
// constructed through the same closed mapping. Live adapters whose records
// disappeared are left alone; removal is RemoveConnection's job.
func (r *Registry) InitializeAdapters() {
	conns := r.Connections()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, conn := range conns {
		if _, ok := r.adapters[conn.ID]; ok {
			continue
		}
		adapter, err := brokers.New(conn.BrokerType, conn.ID, r.deps)
		if err != nil {
			// A record with a broker type outside the closed set can only
			// come from a corrupted store entry; skip it rather than fail boot.
			r.log.Error().Err(err).Str("connection_id", conn.ID).
				Msg("Skipping connection with unknown broker type")
			continue
		}
		r.adapters[conn.ID] = adapter
		r.log.Info().Str("connection_id", conn.ID).Str("broker_type", string(conn.BrokerType)).
			Msg("Adapter initialized from persisted connection")
	}
}

// ConnectAPIConnections connects every API-method connection of the given
// broker type with the supplied credentials, typically at boot from
// environment configuration. A failed connect leaves the record untouched so
// the user can retry over HTTP; a successful one activates it.
func (r *Registry) ConnectAPIConnections(bt domain.BrokerType, creds domain.Credentials) {
	for _, conn := range r.Connections() {
		if conn.BrokerType != bt || conn.Method != domain.MethodAPI {
			continue
		}

		adapter, ok := r.GetAdapter(conn.ID)
		if !ok {
			continue
		}

		result, err := adapter.Connect(creds)
		if err != nil {
			r.log.Warn().Err(err).Str("connection_id", conn.ID).
				Msg("Auto-connect failed")
			continue
		}
		if !result.Success {
			r.log.Warn().Str("connection_id", conn.ID).Str("reason", result.Error).
				Msg("Auto-connect rejected")
			continue
		}

		r.UpdateConnectionStatus(conn.ID, domain.StatusActive, nil)
		r.log.Info().Str("connection_id", conn.ID).Str("broker_type", string(bt)).
			Msg("Connection established from configured credentials")
	}
}

// GetAdapter returns the live adapter for a connection id, if present.
func (r *Registry) GetAdapter(id string) (domain.BrokerAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[id]
	return adapter, ok
}

// loadConnections reads the persisted list. Callers hold storeMu.
// Storage faults are contained here: the caller sees an empty list.
func (r *Registry) loadConnections() []domain.BrokerConnection {
	var conns []domain.BrokerConnection
	found, err := r.store.Get(connectionsKey, &conns)
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to load connections, treating store as empty")
		return nil
	}
	if !found {
		return nil
	}
	return conns
}

// saveConnections writes the persisted list best-effort. Callers hold storeMu.
func (r *Registry) saveConnections(conns []domain.BrokerConnection) {
	if err := r.store.Set(connectionsKey, conns); err != nil {
		r.log.Warn().Err(err).Msg("Failed to persist connections")
	}
}
