// Package orchestrator drives per-broker portfolio refreshes with
// independent failure isolation and maintains the read cache of last-known-
// good portfolios.
package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/foliosync/internal/domain"
	"github.com/foliolabs/foliosync/internal/events"
)

// DefaultDeadline bounds a single adapter's GetPortfolio call during a sync.
const DefaultDeadline = 45 * time.Second

// Registry is the subset of the connection registry the orchestrator
// consumes.
type Registry interface {
	Connections() []domain.BrokerConnection
	Connection(id string) (domain.BrokerConnection, bool)
	GetAdapter(id string) (domain.BrokerAdapter, bool)
	UpdateConnectionStatus(id string, status domain.ConnectionStatus, syncStatus *domain.SyncStatus)
}

// Orchestrator fans out sync work across connections. The portfolio cache
// holds the last-known-good snapshot per connection id; a failed sync never
// evicts a cached entry.
type Orchestrator struct {
	registry Registry
	events   *events.Manager
	deadline time.Duration
	log      zerolog.Logger

	mu    sync.RWMutex // guards cache
	cache map[string]domain.Portfolio
}

// New creates an orchestrator. A non-positive deadline falls back to
// DefaultDeadline.
func New(reg Registry, ev *events.Manager, deadline time.Duration, log zerolog.Logger) *Orchestrator {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Orchestrator{
		registry: reg,
		events:   ev,
		deadline: deadline,
		cache:    make(map[string]domain.Portfolio),
		log:      log.With().Str("service", "orchestrator").Logger(),
	}
}

// SyncBroker refreshes a single connection. A missing adapter yields a
// failed result without touching the connection's status; an adapter
// failure marks the connection error/failed and preserves the original
// message; success caches the portfolio and marks the connection
// active/success, stamping the result with the portfolio's own sync time.
func (o *Orchestrator) SyncBroker(id string) domain.SyncResult {
	brokerType := domain.BrokerType("")
	if conn, ok := o.registry.Connection(id); ok {
		brokerType = conn.BrokerType
	}

	adapter, ok := o.registry.GetAdapter(id)
	if !ok {
		return domain.SyncResult{
			ConnectionID: id,
			BrokerType:   brokerType,
			Status:       domain.SyncFailed,
			Error:        "no adapter registered for connection",
			Timestamp:    time.Now().UTC(),
		}
	}
	if brokerType == "" {
		brokerType = adapter.BrokerType()
	}

	portfolio, err := o.fetchWithDeadline(adapter)
	if err != nil {
		failed := domain.SyncFailed
		o.registry.UpdateConnectionStatus(id, domain.StatusError, &failed)
		o.events.EmitError(events.SyncFailed, "orchestrator", err, map[string]interface{}{
			"connection_id": id,
		})
		return domain.SyncResult{
			ConnectionID: id,
			BrokerType:   brokerType,
			Status:       domain.SyncFailed,
			Error:        err.Error(),
			Timestamp:    time.Now().UTC(),
		}
	}

	o.mu.Lock()
	o.cache[id] = *portfolio
	o.mu.Unlock()

	success := domain.SyncSuccess
	o.registry.UpdateConnectionStatus(id, domain.StatusActive, &success)

	return domain.SyncResult{
		ConnectionID: id,
		BrokerType:   brokerType,
		Status:       domain.SyncSuccess,
		Timestamp:    portfolio.SyncedAt,
	}
}

// SyncAll refreshes every persisted connection concurrently. The result
// slice preserves the enumeration order of connections at call time,
// regardless of completion order, and one connection's failure never aborts
// or delays another's result. An orchestration-level fault inside a task is
// mapped to a failed result with connection id "unknown" rather than
// propagating to the caller.
func (o *Orchestrator) SyncAll() []domain.SyncResult {
	conns := o.registry.Connections()

	o.events.Emit(events.SyncStart, "orchestrator", map[string]interface{}{
		"connections": len(conns),
	})

	results := make([]domain.SyncResult, len(conns))
	var wg sync.WaitGroup

	for i, conn := range conns {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.log.Error().Interface("panic", r).Str("connection_id", id).
						Msg("Sync task fault")
					results[i] = domain.SyncResult{
						ConnectionID: "unknown",
						Status:       domain.SyncFailed,
						Error:        "internal sync fault",
						Timestamp:    time.Now().UTC(),
					}
				}
			}()
			results[i] = o.SyncBroker(id)
		}(i, conn.ID)
	}

	wg.Wait()

	failures := 0
	for _, res := range results {
		if res.Status == domain.SyncFailed {
			failures++
		}
	}
	o.events.Emit(events.SyncComplete, "orchestrator", map[string]interface{}{
		"connections": len(conns),
		"failures":    failures,
	})

	return results
}

// fetchWithDeadline runs the adapter call in its own goroutine and abandons
// it after the deadline. A late completion is discarded: the buffered
// channel lets the goroutine finish, but nobody reads the result, so it is
// never applied to the cache. An adapter panic is converted to an error at
// the granularity of this single call.
func (o *Orchestrator) fetchWithDeadline(adapter domain.BrokerAdapter) (*domain.Portfolio, error) {
	type outcome struct {
		portfolio *domain.Portfolio
		err       error
	}

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("adapter fault: %v", r)}
			}
		}()
		p, err := adapter.GetPortfolio()
		ch <- outcome{portfolio: p, err: err}
	}()

	select {
	case out := <-ch:
		return out.portfolio, out.err
	case <-time.After(o.deadline):
		return nil, fmt.Errorf("sync deadline exceeded after %s", o.deadline)
	}
}

// GetCachedPortfolio returns the last-known-good portfolio for a connection.
func (o *Orchestrator) GetCachedPortfolio(id string) (domain.Portfolio, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.cache[id]
	return p, ok
}

// GetAllCachedPortfolios returns a snapshot of all cached portfolios.
// Order is unspecified.
func (o *Orchestrator) GetAllCachedPortfolios() []domain.Portfolio {
	o.mu.RLock()
	defer o.mu.RUnlock()

	portfolios := make([]domain.Portfolio, 0, len(o.cache))
	for _, p := range o.cache {
		portfolios = append(portfolios, p)
	}
	return portfolios
}

// ClearCache drops all cached entries. Persisted connections and live
// adapters are unaffected.
func (o *Orchestrator) ClearCache() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cache = make(map[string]domain.Portfolio)
}
