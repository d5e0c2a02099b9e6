package orchestrator

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolabs/foliosync/internal/brokers"
	"github.com/foliolabs/foliosync/internal/domain"
	"github.com/foliolabs/foliosync/internal/events"
	"github.com/foliolabs/foliosync/internal/registry"
	"github.com/foliolabs/foliosync/internal/storage"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE kv_store (
		key        TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)

	store := storage.New(db)
	deps := brokers.Deps{Store: store, Log: zerolog.Nop()}
	return registry.New(store, deps, events.NewManager(zerolog.Nop()), zerolog.Nop())
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *registry.Registry) {
	t.Helper()
	reg := newTestRegistry(t)
	return New(reg, events.NewManager(zerolog.Nop()), 0, zerolog.Nop()), reg
}

// addManual creates a manual connection holding one position so syncs succeed.
func addManual(t *testing.T, reg *registry.Registry, ticker string) domain.BrokerConnection {
	t.Helper()

	conn, err := reg.AddConnection(domain.BrokerManual, "manual "+ticker, domain.MethodManual)
	require.NoError(t, err)

	adapter, ok := reg.GetAdapter(conn.ID)
	require.True(t, ok)
	writer, ok := adapter.(domain.ManualWriter)
	require.True(t, ok)
	require.NoError(t, writer.UpsertPosition(domain.Position{
		Ticker: ticker, Quantity: 1, AvgPrice: 100, CurrentValue: 110,
	}))

	return conn
}

// addUnconnected creates an API connection whose adapter was never connected,
// so every sync attempt fails.
func addUnconnected(t *testing.T, reg *registry.Registry) domain.BrokerConnection {
	t.Helper()

	conn, err := reg.AddConnection(domain.BrokerTradernet, "tradernet", domain.MethodAPI)
	require.NoError(t, err)
	return conn
}

func TestSyncBroker_Success(t *testing.T) {
	orch, reg := newTestOrchestrator(t)
	conn := addManual(t, reg, "AAPL")

	result := orch.SyncBroker(conn.ID)

	assert.Equal(t, domain.SyncSuccess, result.Status)
	assert.Equal(t, conn.ID, result.ConnectionID)
	assert.Equal(t, domain.BrokerManual, result.BrokerType)
	assert.Empty(t, result.Error)

	cached, ok := orch.GetCachedPortfolio(conn.ID)
	require.True(t, ok)
	require.Len(t, cached.Positions, 1)
	assert.Equal(t, "AAPL", cached.Positions[0].Ticker)
	// Result timestamp is the portfolio's own sync time.
	assert.Equal(t, cached.SyncedAt, result.Timestamp)

	record, ok := reg.Connection(conn.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusActive, record.Status)
	assert.Equal(t, domain.SyncSuccess, record.LastSyncStatus)
	require.NotNil(t, record.LastSyncAt)
}

func TestSyncBroker_MissingAdapter(t *testing.T) {
	orch, _ := newTestOrchestrator(t)

	result := orch.SyncBroker("no-such-connection")

	assert.Equal(t, domain.SyncFailed, result.Status)
	assert.Equal(t, "no-such-connection", result.ConnectionID)
	assert.NotEmpty(t, result.Error)

	_, ok := orch.GetCachedPortfolio("no-such-connection")
	assert.False(t, ok)
}

func TestSyncBroker_FailureKeepsLastKnownGood(t *testing.T) {
	orch, reg := newTestOrchestrator(t)
	conn := addUnconnected(t, reg)

	// A previous sync left a cached portfolio.
	stale := domain.Portfolio{
		BrokerType:   domain.BrokerTradernet,
		ConnectionID: conn.ID,
		TotalValue:   1234,
		SyncedAt:     time.Now().UTC().Add(-time.Hour),
	}
	orch.mu.Lock()
	orch.cache[conn.ID] = stale
	orch.mu.Unlock()

	result := orch.SyncBroker(conn.ID)

	assert.Equal(t, domain.SyncFailed, result.Status)
	assert.Contains(t, result.Error, "not connected")

	cached, ok := orch.GetCachedPortfolio(conn.ID)
	require.True(t, ok)
	assert.Equal(t, stale.TotalValue, cached.TotalValue)

	record, ok := reg.Connection(conn.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusError, record.Status)
	assert.Equal(t, domain.SyncFailed, record.LastSyncStatus)
}

func TestSyncAll_PartialFailureIsolation(t *testing.T) {
	orch, reg := newTestOrchestrator(t)

	first := addManual(t, reg, "AAPL")
	failing := addUnconnected(t, reg)
	last := addManual(t, reg, "MSFT")

	results := orch.SyncAll()

	require.Len(t, results, 3)
	// Results preserve enumeration order regardless of completion order.
	assert.Equal(t, first.ID, results[0].ConnectionID)
	assert.Equal(t, failing.ID, results[1].ConnectionID)
	assert.Equal(t, last.ID, results[2].ConnectionID)

	assert.Equal(t, domain.SyncSuccess, results[0].Status)
	assert.Equal(t, domain.SyncFailed, results[1].Status)
	assert.Equal(t, domain.SyncSuccess, results[2].Status)

	// Failure never blocks the other connections' caches.
	_, ok := orch.GetCachedPortfolio(first.ID)
	assert.True(t, ok)
	_, ok = orch.GetCachedPortfolio(last.ID)
	assert.True(t, ok)
	_, ok = orch.GetCachedPortfolio(failing.ID)
	assert.False(t, ok)
}

func TestSyncAll_NoConnections(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	assert.Empty(t, orch.SyncAll())
}

// stubAdapter lets deadline and panic behavior be scripted per test.
type stubAdapter struct {
	delay  time.Duration
	panics bool
}

func (s *stubAdapter) BrokerType() domain.BrokerType { return domain.BrokerManual }
func (s *stubAdapter) Connect(domain.Credentials) (domain.ConnectResult, error) {
	return domain.ConnectResult{Success: true}, nil
}
func (s *stubAdapter) Disconnect()              {}
func (s *stubAdapter) ValidateConnection() bool { return true }
func (s *stubAdapter) GetPortfolio() (*domain.Portfolio, error) {
	if s.panics {
		panic("adapter bug")
	}
	time.Sleep(s.delay)
	return &domain.Portfolio{SyncedAt: time.Now().UTC()}, nil
}
func (s *stubAdapter) GetTransactions(_, _ time.Time) ([]domain.Transaction, error) {
	return nil, nil
}
func (s *stubAdapter) Capabilities() domain.Capabilities { return domain.Capabilities{} }

// fakeRegistry wires scripted adapters straight into the orchestrator.
type fakeRegistry struct {
	conns    []domain.BrokerConnection
	adapters map[string]domain.BrokerAdapter
}

func (f *fakeRegistry) Connections() []domain.BrokerConnection { return f.conns }

func (f *fakeRegistry) Connection(id string) (domain.BrokerConnection, bool) {
	for _, c := range f.conns {
		if c.ID == id {
			return c, true
		}
	}
	return domain.BrokerConnection{}, false
}

func (f *fakeRegistry) GetAdapter(id string) (domain.BrokerAdapter, bool) {
	a, ok := f.adapters[id]
	return a, ok
}

func (f *fakeRegistry) UpdateConnectionStatus(string, domain.ConnectionStatus, *domain.SyncStatus) {}

func TestSyncBroker_LateCompletionNeverCached(t *testing.T) {
	reg := &fakeRegistry{
		conns:    []domain.BrokerConnection{{ID: "slow", BrokerType: domain.BrokerManual}},
		adapters: map[string]domain.BrokerAdapter{"slow": &stubAdapter{delay: 200 * time.Millisecond}},
	}
	orch := New(reg, events.NewManager(zerolog.Nop()), 50*time.Millisecond, zerolog.Nop())

	result := orch.SyncBroker("slow")
	assert.Equal(t, domain.SyncFailed, result.Status)
	assert.Contains(t, result.Error, "deadline exceeded")

	// Let the abandoned adapter call run to completion, then confirm its
	// result was dropped rather than applied late.
	time.Sleep(300 * time.Millisecond)
	_, ok := orch.GetCachedPortfolio("slow")
	assert.False(t, ok)
	assert.Empty(t, orch.GetAllCachedPortfolios())
}

// brokenAdapter violates the adapter contract by returning neither a
// portfolio nor an error.
type brokenAdapter struct{ stubAdapter }

func (b *brokenAdapter) GetPortfolio() (*domain.Portfolio, error) { return nil, nil }

func TestSyncAll_TaskFaultMapsToFailedResult(t *testing.T) {
	reg := &fakeRegistry{
		conns: []domain.BrokerConnection{
			{ID: "ok", BrokerType: domain.BrokerManual},
			{ID: "broken", BrokerType: domain.BrokerManual},
		},
		adapters: map[string]domain.BrokerAdapter{
			"ok":     &stubAdapter{},
			"broken": &brokenAdapter{},
		},
	}
	orch := New(reg, events.NewManager(zerolog.Nop()), 0, zerolog.Nop())

	results := orch.SyncAll()

	require.Len(t, results, 2)
	assert.Equal(t, "ok", results[0].ConnectionID)
	assert.Equal(t, domain.SyncSuccess, results[0].Status)

	// A fault inside the sync task is contained as a failed result with no
	// reliable connection identity and a generic message.
	assert.Equal(t, "unknown", results[1].ConnectionID)
	assert.Equal(t, domain.SyncFailed, results[1].Status)
	assert.Equal(t, "internal sync fault", results[1].Error)

	_, ok := orch.GetCachedPortfolio("broken")
	assert.False(t, ok)
	_, ok = orch.GetCachedPortfolio("ok")
	assert.True(t, ok)
}

func TestFetchWithDeadline_Expires(t *testing.T) {
	reg := newTestRegistry(t)
	orch := New(reg, events.NewManager(zerolog.Nop()), 50*time.Millisecond, zerolog.Nop())

	_, err := orch.fetchWithDeadline(&stubAdapter{delay: 500 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadline exceeded")
}

func TestFetchWithDeadline_PanicBecomesError(t *testing.T) {
	orch, _ := newTestOrchestrator(t)

	_, err := orch.fetchWithDeadline(&stubAdapter{panics: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adapter fault")
}

func TestGetAllCachedPortfolios(t *testing.T) {
	orch, reg := newTestOrchestrator(t)
	addManual(t, reg, "AAPL")
	addManual(t, reg, "MSFT")

	orch.SyncAll()

	portfolios := orch.GetAllCachedPortfolios()
	assert.Len(t, portfolios, 2)
}

func TestClearCache(t *testing.T) {
	orch, reg := newTestOrchestrator(t)
	conn := addManual(t, reg, "AAPL")
	orch.SyncBroker(conn.ID)

	orch.ClearCache()

	_, ok := orch.GetCachedPortfolio(conn.ID)
	assert.False(t, ok)
	assert.Empty(t, orch.GetAllCachedPortfolios())
	// Connections and adapters are unaffected.
	assert.Len(t, reg.Connections(), 1)
}
