// Package consolidation merges per-broker portfolios into the single
// ticker-consolidated read model. AggregatePortfolios is a pure function:
// it takes snapshots and returns a fresh aggregate, never caching anything
// between calls.
package consolidation

import (
	"sort"
	"time"

	"github.com/foliolabs/foliosync/internal/domain"
)

// AggregatePortfolios merges N portfolios into one aggregated view.
//
// For each distinct ticker, the first portfolio/position encountered (input
// order, then position order) fixes the aggregate's name and instrument
// type; later differing names are ignored. Every contributing portfolio
// appends its own holding; holdings are never merged across portfolios,
// even when the same connection id appears twice.
//
// AggregatedPortfolio.TotalValue sums raw portfolio totals (which include
// cash) while TotalPnL sums only position-level PnL. Do not "fix" this by
// deriving TotalValue from positions: cash has no PnL and the asymmetry is
// intentional.
func AggregatePortfolios(portfolios []domain.Portfolio) domain.AggregatedPortfolio {
	byTicker := make(map[string]*domain.ConsolidatedPosition)
	order := make([]string, 0)

	for _, p := range portfolios {
		for _, pos := range p.Positions {
			cp, ok := byTicker[pos.Ticker]
			if !ok {
				cp = &domain.ConsolidatedPosition{
					Ticker:         pos.Ticker,
					Name:           pos.Name,
					InstrumentType: pos.InstrumentType,
				}
				byTicker[pos.Ticker] = cp
				order = append(order, pos.Ticker)
			}
			cp.Holdings = append(cp.Holdings, domain.BrokerHolding{
				BrokerType:   p.BrokerType,
				ConnectionID: p.ConnectionID,
				Quantity:     pos.Quantity,
				AvgPrice:     pos.AvgPrice,
				CurrentValue: pos.CurrentValue,
			})
		}
	}

	consolidated := make([]domain.ConsolidatedPosition, 0, len(order))
	for _, ticker := range order {
		cp := byTicker[ticker]

		totalQuantity := 0.0
		costBasis := 0.0
		totalValue := 0.0
		for _, h := range cp.Holdings {
			totalQuantity += h.Quantity
			costBasis += h.Quantity * h.AvgPrice
			totalValue += h.CurrentValue
		}

		weightedAvgPrice := 0.0
		if totalQuantity != 0 {
			weightedAvgPrice = costBasis / totalQuantity
		}

		cp.TotalQuantity = totalQuantity
		cp.WeightedAvgPrice = weightedAvgPrice
		cp.TotalValue = totalValue
		cp.TotalPnL = totalValue - totalQuantity*weightedAvgPrice

		consolidated = append(consolidated, *cp)
	}

	// Stable sort: ties keep first-seen order.
	sort.SliceStable(consolidated, func(i, j int) bool {
		return consolidated[i].TotalValue > consolidated[j].TotalValue
	})

	totalValue := 0.0
	for _, p := range portfolios {
		totalValue += p.TotalValue
	}

	totalPnL := 0.0
	for _, cp := range consolidated {
		totalPnL += cp.TotalPnL
	}

	return domain.AggregatedPortfolio{
		Portfolios:            portfolios,
		ConsolidatedPositions: consolidated,
		TotalValue:            totalValue,
		TotalPnL:              totalPnL,
		SyncedAt:              oldestSyncTime(portfolios),
	}
}

// oldestSyncTime returns the earliest SyncedAt among inputs (the aggregate
// is only as fresh as its stalest source), or now for empty input.
func oldestSyncTime(portfolios []domain.Portfolio) time.Time {
	if len(portfolios) == 0 {
		return time.Now().UTC()
	}

	oldest := portfolios[0].SyncedAt
	for _, p := range portfolios[1:] {
		if p.SyncedAt.Before(oldest) {
			oldest = p.SyncedAt
		}
	}
	return oldest
}
