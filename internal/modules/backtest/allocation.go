package backtest

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/aristath/portfin/internal/domain"
)

const maxGreedyRounds = 100000

// ShareAllocation is a whole-share realization of target weights.
type ShareAllocation struct {
	Shares map[string]int64
	Cash   decimal.Decimal
}

// Value prices the allocation, treating assets without a price as worthless.
func (a ShareAllocation) Value(prices map[string]float64) decimal.Decimal {
	total := a.Cash
	for asset, n := range a.Shares {
		total = total.Add(decimal.NewFromFloat(prices[asset]).Mul(decimal.NewFromInt(n)))
	}
	return total
}

// AllocateShares converts weights into whole shares of capital. It floors
// each target position, then spends leftover cash one share at a time on the
// affordable asset furthest below its target until none is below target.
func AllocateShares(weights domain.Weights, capital float64, prices map[string]float64) ShareAllocation {
	total := decimal.NewFromFloat(capital)
	alloc := ShareAllocation{Shares: make(map[string]int64), Cash: total}
	if !total.IsPositive() {
		return alloc
	}

	type target struct {
		asset  string
		weight float64
		price  decimal.Decimal
	}
	var targets []target
	for _, a := range weights.Assets() {
		p, ok := prices[a]
		if !ok || !domain.ValidPrice(p) || weights[a] <= 0 {
			continue
		}
		targets = append(targets, target{asset: a, weight: weights[a], price: decimal.NewFromFloat(p)})
	}
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].weight > targets[j].weight })

	for _, t := range targets {
		n := total.Mul(decimal.NewFromFloat(t.weight)).Div(t.price).Floor()
		cost := n.Mul(t.price)
		if n.IsPositive() && cost.LessThanOrEqual(alloc.Cash) {
			alloc.Shares[t.asset] = n.IntPart()
			alloc.Cash = alloc.Cash.Sub(cost)
		}
	}

	for round := 0; round < maxGreedyRounds; round++ {
		best := -1
		var bestDeficit decimal.Decimal
		for i, t := range targets {
			if t.price.GreaterThan(alloc.Cash) {
				continue
			}
			held := t.price.Mul(decimal.NewFromInt(alloc.Shares[t.asset]))
			deficit := total.Mul(decimal.NewFromFloat(t.weight)).Sub(held).Div(total)
			if best < 0 || deficit.GreaterThan(bestDeficit) {
				best, bestDeficit = i, deficit
			}
		}
		if best < 0 || !bestDeficit.IsPositive() {
			break
		}
		t := targets[best]
		alloc.Shares[t.asset]++
		alloc.Cash = alloc.Cash.Sub(t.price)
	}

	return alloc
}
