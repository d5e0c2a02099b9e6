package consolidation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolabs/foliosync/internal/domain"
)

func TestAggregatePortfolios_EmptyInput(t *testing.T) {
	before := time.Now().UTC()
	agg := AggregatePortfolios(nil)
	after := time.Now().UTC()

	assert.Empty(t, agg.ConsolidatedPositions)
	assert.Equal(t, 0.0, agg.TotalValue)
	assert.Equal(t, 0.0, agg.TotalPnL)
	assert.False(t, agg.SyncedAt.Before(before))
	assert.False(t, agg.SyncedAt.After(after))
}

func TestAggregatePortfolios_WeightedAverageAcrossBrokers(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)

	portfolios := []domain.Portfolio{
		{
			BrokerType:   domain.BrokerTradernet,
			ConnectionID: "conn-a",
			Positions: []domain.Position{
				{Ticker: "AAPL", Name: "Apple Inc", InstrumentType: domain.InstrumentStock,
					Quantity: 100, AvgPrice: 250, CurrentValue: 27000},
			},
			TotalValue: 27000,
			SyncedAt:   t2,
		},
		{
			BrokerType:   domain.BrokerDegiro,
			ConnectionID: "conn-b",
			Positions: []domain.Position{
				{Ticker: "AAPL", Name: "Apple", InstrumentType: domain.InstrumentStock,
					Quantity: 50, AvgPrice: 280, CurrentValue: 13500},
			},
			TotalValue: 13500,
			SyncedAt:   t1,
		},
	}

	agg := AggregatePortfolios(portfolios)

	require.Len(t, agg.ConsolidatedPositions, 1)
	cp := agg.ConsolidatedPositions[0]

	assert.Equal(t, "AAPL", cp.Ticker)
	// First portfolio encountered fixes the name.
	assert.Equal(t, "Apple Inc", cp.Name)
	assert.Equal(t, 150.0, cp.TotalQuantity)
	assert.InDelta(t, 260.0, cp.WeightedAvgPrice, 1e-9)
	assert.Equal(t, 40500.0, cp.TotalValue)
	// PnL is market value minus cost basis: 40500 - 150*260.
	assert.InDelta(t, 1500.0, cp.TotalPnL, 1e-9)

	require.Len(t, cp.Holdings, 2)
	assert.Equal(t, "conn-a", cp.Holdings[0].ConnectionID)
	assert.Equal(t, "conn-b", cp.Holdings[1].ConnectionID)

	// View is as fresh as its stalest source.
	assert.Equal(t, t1, agg.SyncedAt)
}

func TestAggregatePortfolios_ZeroQuantityAvoidsDivisionByZero(t *testing.T) {
	portfolios := []domain.Portfolio{
		{
			ConnectionID: "conn-a",
			Positions: []domain.Position{
				{Ticker: "HEDGE", Quantity: 100, AvgPrice: 10, CurrentValue: 0},
			},
			SyncedAt: time.Now().UTC(),
		},
		{
			ConnectionID: "conn-b",
			Positions: []domain.Position{
				{Ticker: "HEDGE", Quantity: -100, AvgPrice: 10, CurrentValue: 0},
			},
			SyncedAt: time.Now().UTC(),
		},
	}

	agg := AggregatePortfolios(portfolios)

	require.Len(t, agg.ConsolidatedPositions, 1)
	assert.Equal(t, 0.0, agg.ConsolidatedPositions[0].TotalQuantity)
	assert.Equal(t, 0.0, agg.ConsolidatedPositions[0].WeightedAvgPrice)
}

func TestAggregatePortfolios_SortedByValueDescendingStable(t *testing.T) {
	now := time.Now().UTC()
	portfolios := []domain.Portfolio{
		{
			ConnectionID: "conn-a",
			Positions: []domain.Position{
				{Ticker: "SMALL", Quantity: 1, AvgPrice: 100, CurrentValue: 100},
				{Ticker: "TIE1", Quantity: 1, AvgPrice: 500, CurrentValue: 500},
				{Ticker: "BIG", Quantity: 10, AvgPrice: 90, CurrentValue: 1000},
				{Ticker: "TIE2", Quantity: 1, AvgPrice: 500, CurrentValue: 500},
			},
			SyncedAt: now,
		},
	}

	agg := AggregatePortfolios(portfolios)

	require.Len(t, agg.ConsolidatedPositions, 4)
	assert.Equal(t, "BIG", agg.ConsolidatedPositions[0].Ticker)
	// Equal values keep first-seen order.
	assert.Equal(t, "TIE1", agg.ConsolidatedPositions[1].Ticker)
	assert.Equal(t, "TIE2", agg.ConsolidatedPositions[2].Ticker)
	assert.Equal(t, "SMALL", agg.ConsolidatedPositions[3].Ticker)
}

func TestAggregatePortfolios_TotalsIncludeCashButNotCashPnL(t *testing.T) {
	now := time.Now().UTC()
	portfolios := []domain.Portfolio{
		{
			ConnectionID: "conn-a",
			Positions: []domain.Position{
				{Ticker: "VWCE", Quantity: 10, AvgPrice: 100, CurrentValue: 1100},
			},
			CashBalances: []domain.CashBalance{{Currency: "EUR", Amount: 500}},
			TotalValue:   1600, // positions + cash
			SyncedAt:     now,
		},
	}

	agg := AggregatePortfolios(portfolios)

	// TotalValue sums raw portfolio totals, cash included.
	assert.Equal(t, 1600.0, agg.TotalValue)
	// TotalPnL covers positions only: 1100 - 10*100.
	assert.InDelta(t, 100.0, agg.TotalPnL, 1e-9)
}

func TestAggregatePortfolios_HoldingsNeverMerged(t *testing.T) {
	now := time.Now().UTC()
	// Same connection id appearing twice still contributes two holdings.
	portfolios := []domain.Portfolio{
		{
			ConnectionID: "conn-a",
			Positions:    []domain.Position{{Ticker: "MSFT", Quantity: 5, AvgPrice: 300, CurrentValue: 1600}},
			SyncedAt:     now,
		},
		{
			ConnectionID: "conn-a",
			Positions:    []domain.Position{{Ticker: "MSFT", Quantity: 3, AvgPrice: 320, CurrentValue: 960}},
			SyncedAt:     now,
		},
	}

	agg := AggregatePortfolios(portfolios)

	require.Len(t, agg.ConsolidatedPositions, 1)
	assert.Len(t, agg.ConsolidatedPositions[0].Holdings, 2)
	assert.Equal(t, 8.0, agg.ConsolidatedPositions[0].TotalQuantity)
}

func TestAggregatePortfolios_SingleBrokerTicker(t *testing.T) {
	now := time.Now().UTC()
	portfolios := []domain.Portfolio{
		{
			BrokerType:   domain.BrokerManual,
			ConnectionID: "conn-m",
			Positions: []domain.Position{
				{Ticker: "NVO", Name: "Novo Nordisk", Quantity: 20, AvgPrice: 80, CurrentValue: 1700},
			},
			TotalValue: 1700,
			SyncedAt:   now,
		},
	}

	agg := AggregatePortfolios(portfolios)

	require.Len(t, agg.ConsolidatedPositions, 1)
	cp := agg.ConsolidatedPositions[0]
	require.Len(t, cp.Holdings, 1)
	assert.Equal(t, domain.BrokerManual, cp.Holdings[0].BrokerType)
	assert.Equal(t, 20.0, cp.TotalQuantity)
	assert.InDelta(t, 80.0, cp.WeightedAvgPrice, 1e-9)
	assert.InDelta(t, 100.0, cp.TotalPnL, 1e-9)
}
