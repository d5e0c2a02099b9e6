package brokers

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolabs/foliosync/internal/domain"
)

func TestImportAdapter_EmptyValidBeforeImport(t *testing.T) {
	a := NewImportAdapter(domain.BrokerDegiro, "conn-d", newTestStore(t), zerolog.Nop())

	p, err := a.GetPortfolio()
	require.NoError(t, err)
	assert.Equal(t, domain.BrokerDegiro, p.BrokerType)
	assert.Equal(t, "conn-d", p.ConnectionID)
	assert.Empty(t, p.Positions)
	assert.Equal(t, 0.0, p.TotalValue)
	assert.False(t, p.SyncedAt.IsZero())
}

func TestImportAdapter_ImportReplacesSnapshot(t *testing.T) {
	a := NewImportAdapter(domain.BrokerDegiro, "conn-d", newTestStore(t), zerolog.Nop())

	require.NoError(t, a.SetPortfolioFromImport(domain.Portfolio{
		// Mislabeled on purpose: the adapter must stamp its own identity.
		BrokerType:   domain.BrokerTradernet,
		ConnectionID: "someone-else",
		Positions: []domain.Position{
			{Ticker: "ASML", Quantity: 4, AvgPrice: 600, CurrentValue: 2800},
		},
		CashBalances: []domain.CashBalance{{Currency: "EUR", Amount: 150}},
	}))

	p, err := a.GetPortfolio()
	require.NoError(t, err)
	assert.Equal(t, domain.BrokerDegiro, p.BrokerType)
	assert.Equal(t, "conn-d", p.ConnectionID)
	require.Len(t, p.Positions, 1)
	assert.Equal(t, "ASML", p.Positions[0].Ticker)
	assert.Equal(t, 2950.0, p.TotalValue)
	assert.False(t, p.SyncedAt.IsZero())

	// Second import overwrites the first entirely.
	require.NoError(t, a.SetPortfolioFromImport(domain.Portfolio{
		Positions: []domain.Position{
			{Ticker: "SAP", Quantity: 10, AvgPrice: 150, CurrentValue: 1800},
		},
	}))

	p, err = a.GetPortfolio()
	require.NoError(t, err)
	require.Len(t, p.Positions, 1)
	assert.Equal(t, "SAP", p.Positions[0].Ticker)
}

func TestImportAdapter_SnapshotSurvivesReconstruction(t *testing.T) {
	store := newTestStore(t)

	a := NewImportAdapter(domain.BrokerDegiro, "conn-d", store, zerolog.Nop())
	require.NoError(t, a.SetPortfolioFromImport(domain.Portfolio{
		Positions: []domain.Position{{Ticker: "ASML", Quantity: 4, CurrentValue: 2800}},
	}))

	b := NewImportAdapter(domain.BrokerDegiro, "conn-d", store, zerolog.Nop())
	p, err := b.GetPortfolio()
	require.NoError(t, err)
	require.Len(t, p.Positions, 1)
	assert.Equal(t, "ASML", p.Positions[0].Ticker)
}

func TestImportAdapter_ReturnedPortfolioIsACopy(t *testing.T) {
	a := NewImportAdapter(domain.BrokerDegiro, "conn-d", newTestStore(t), zerolog.Nop())
	require.NoError(t, a.SetPortfolioFromImport(domain.Portfolio{
		Positions: []domain.Position{{Ticker: "ASML", Quantity: 4, CurrentValue: 2800}},
	}))

	p1, err := a.GetPortfolio()
	require.NoError(t, err)
	p1.Positions[0].Ticker = "MUTATED"

	p2, err := a.GetPortfolio()
	require.NoError(t, err)
	assert.Equal(t, "ASML", p2.Positions[0].Ticker)
}

func TestImportAdapter_NoTransactionHistory(t *testing.T) {
	a := NewImportAdapter(domain.BrokerDegiro, "conn-d", newTestStore(t), zerolog.Nop())

	txs, err := a.GetTransactions(time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, txs)
}
