package service

import (
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
)

// PriceGate decides whether discharging is worth it at the current price.
type PriceGate struct {
	table  *PriceTable
	window time.Duration
}

func NewPriceGate(table *PriceTable, window time.Duration) *PriceGate {
	return &PriceGate{table: table, window: window}
}

// Evaluate enables discharge when the current price exceeds
// avg + sigma*(1-soc/100), or limit when one is given. Without price data
// it returns ErrNoPriceData and the caller keeps its current setting.
func (g *PriceGate) Evaluate(now time.Time, soc int, limit *float64) (bool, float64, error) {
	entry, ok := g.table.At(now)
	if !ok {
		return false, 0, domain.ErrNoPriceData
	}
	if limit != nil {
		return entry.Price > *limit, entry.Price, nil
	}
	avg, sigma, ok := g.table.Stats(now, g.window)
	if !ok {
		return false, entry.Price, domain.ErrNoPriceData
	}
	return entry.Price > Threshold(avg, sigma, soc), entry.Price, nil
}

func Threshold(avg, sigma float64, soc int) float64 {
	soc = min(max(soc, 0), 100)
	return avg + sigma*(1-float64(soc)/100)
}
