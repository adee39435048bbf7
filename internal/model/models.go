package model

import (
	"math"
	"time"
)

// DateFormat is the canonical format for calendar dates.
const DateFormat = "2006-01-02"

// Currency identifies the currency a provider reports fares in.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyARS Currency = "ARS"
)

// RateTable maps currency pairs ("EUR_USD", "ARS_USD") to conversion rates.
type RateTable map[string]float64

// ToUSD converts a provider-reported price to USD, rounded to 2 decimals at
// the point of conversion. EUR prices multiply by the EUR_USD rate; ARS fare
// totals divide by the ARS_USD rate. Returns false when the needed rate is
// missing or zero.
func (r RateTable) ToUSD(price float64, cur Currency) (float64, bool) {
	switch cur {
	case CurrencyUSD:
		return RoundUSD(price), true
	case CurrencyEUR:
		rate := r["EUR_USD"]
		if rate == 0 {
			return 0, false
		}
		return RoundUSD(price * rate), true
	case CurrencyARS:
		rate := r["ARS_USD"]
		if rate == 0 {
			return 0, false
		}
		return RoundUSD(price / rate), true
	default:
		return 0, false
	}
}

// RoundUSD rounds a dollar amount to 2 decimal places.
func RoundUSD(v float64) float64 {
	return math.Round(v*100) / 100
}

// PriceObservation is the cheapest known USD fare for one departure date,
// one destination, one provider.
type PriceObservation struct {
	Date  time.Time
	Price float64 // USD, rounded at conversion time
}

// DateWindow is the inclusive date range a search cycle covers.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls inside the window (inclusive).
func (w DateWindow) Contains(d time.Time) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// ThresholdSet holds the USD price boundaries for one region.
type ThresholdSet struct {
	Store  float64
	Notify float64
	OneWay float64
}

// Combination is a priced deal: a matched outbound+inbound pair, or a
// single outbound leg when InboundDate is nil.
type Combination struct {
	Destination   string
	Provider      string
	OutboundDate  time.Time
	InboundDate   *time.Time
	OutboundPrice float64
	InboundPrice  *float64
	TotalUSD      float64
	BookingLink   string
}

// OneWay reports whether the combination has no inbound leg.
func (c Combination) OneWay() bool {
	return c.InboundDate == nil
}
