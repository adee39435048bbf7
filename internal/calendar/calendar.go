package calendar

import (
	"sort"
	"sync"
	"time"

	"farewatch/internal/model"
)

// RawDayPrice is one provider-reported price record for a single departure
// date, before normalization. Fields a provider does not report stay at
// their zero values.
type RawDayPrice struct {
	Date    string   // "YYYY-MM-DD"
	Price   *float64 // nil means no inventory that day
	Seats   *int     // nil means the provider does not report seat counts
	SoldOut bool
}

// Normalize converts a raw day-price record into a USD PriceObservation.
// Records with a nil or non-positive price, a sold-out flag, a zero seat
// count, or an unparseable date are rejected (ok=false), never errors:
// these shapes are expected and frequent in provider payloads.
func Normalize(raw RawDayPrice, cur model.Currency, rates model.RateTable) (model.PriceObservation, bool) {
	if raw.SoldOut {
		return model.PriceObservation{}, false
	}
	if raw.Seats != nil && *raw.Seats < 1 {
		return model.PriceObservation{}, false
	}
	if raw.Price == nil || *raw.Price <= 0 {
		return model.PriceObservation{}, false
	}
	date, err := time.Parse(model.DateFormat, raw.Date)
	if err != nil {
		return model.PriceObservation{}, false
	}
	usd, ok := rates.ToUSD(*raw.Price, cur)
	if !ok {
		return model.PriceObservation{}, false
	}
	return model.PriceObservation{Date: date, Price: usd}, true
}

// Builder accumulates normalized observations into a per-destination
// calendar, keeping the single cheapest observation per date. The merge
// rule is commutative and idempotent, so overlapping month pages can be
// fed in any order, including concurrently.
type Builder struct {
	mu     sync.Mutex
	byDate map[string]model.PriceObservation
}

// NewBuilder creates an empty calendar builder.
func NewBuilder() *Builder {
	return &Builder{byDate: make(map[string]model.PriceObservation)}
}

// Add merges one observation. The lower price wins; on tie the
// earlier-seen observation is kept.
func (b *Builder) Add(obs model.PriceObservation) {
	key := obs.Date.Format(model.DateFormat)

	b.mu.Lock()
	defer b.mu.Unlock()

	existing, seen := b.byDate[key]
	if !seen || obs.Price < existing.Price {
		b.byDate[key] = obs
	}
}

// AddRaw normalizes and merges a batch of raw records, returning how many
// survived normalization.
func (b *Builder) AddRaw(raws []RawDayPrice, cur model.Currency, rates model.RateTable) int {
	added := 0
	for _, raw := range raws {
		obs, ok := Normalize(raw, cur, rates)
		if !ok {
			continue
		}
		b.Add(obs)
		added++
	}
	return added
}

// Ordered returns the observations inside the window, ascending by date.
// Dates outside the window are retained internally but never returned.
func (b *Builder) Ordered(window model.DateWindow) []model.PriceObservation {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]model.PriceObservation, 0, len(b.byDate))
	for _, obs := range b.byDate {
		if window.Contains(obs.Date) {
			result = append(result, obs)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

// PriceMap returns a date-string keyed view of the observations inside the
// window, for split-leg matching.
func (b *Builder) PriceMap(window model.DateWindow) map[string]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make(map[string]float64, len(b.byDate))
	for key, obs := range b.byDate {
		if window.Contains(obs.Date) {
			result[key] = obs.Price
		}
	}
	return result
}
