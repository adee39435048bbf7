package engine

import (
	"sort"
	"time"

	"farewatch/internal/model"
)

// CalendarSource is the price data one provider produced for one
// destination, in one of two shapes: a unified calendar where every date
// implies both directions, or separate outbound/inbound leg maps.
type CalendarSource struct {
	days     []model.PriceObservation
	outbound map[string]float64
	inbound  map[string]float64
}

// Unified wraps an ascending-date-ordered calendar.
func Unified(days []model.PriceObservation) CalendarSource {
	return CalendarSource{days: days}
}

// Split wraps separate outbound and inbound leg price maps keyed by
// "YYYY-MM-DD" date strings.
func Split(outbound, inbound map[string]float64) CalendarSource {
	return CalendarSource{outbound: outbound, inbound: inbound}
}

// MatchParams carries the business constraints for one matching pass.
type MatchParams struct {
	Destination    string
	Provider       string
	Window         model.DateWindow
	TripLengthDays int
}

// MatchResult holds every candidate combination a matching pass produced.
// BestRoundTrip is the minimum-total round trip regardless of thresholds,
// kept so an operator can see the best available fare even when nothing
// clears the storage threshold.
type MatchResult struct {
	RoundTrips    []model.Combination
	OneWays       []model.Combination
	BestRoundTrip *model.Combination
}

// Match enumerates one-way and fixed-length round-trip combinations from a
// calendar source. Round trips require the inbound date to be exactly
// TripLengthDays after the outbound date and inside the window; near
// matches are never substituted.
func Match(src CalendarSource, p MatchParams) MatchResult {
	if src.outbound != nil {
		return matchSplit(src, p)
	}
	return matchUnified(src, p)
}

// matchUnified scans an ordered calendar. For each outbound candidate the
// forward scan terminates as soon as the gap exceeds the trip length,
// since dates are sorted ascending.
func matchUnified(src CalendarSource, p MatchParams) MatchResult {
	var result MatchResult
	for i, outbound := range src.days {
		if !p.Window.Contains(outbound.Date) {
			continue
		}

		result.OneWays = append(result.OneWays, oneWay(outbound, p))

		for _, inbound := range src.days[i+1:] {
			gap := daysBetween(outbound.Date, inbound.Date)
			if gap > p.TripLengthDays {
				break
			}
			if gap != p.TripLengthDays {
				continue
			}
			if inbound.Date.After(p.Window.End) {
				continue
			}
			result.add(roundTrip(outbound.Date, outbound.Price, inbound.Date, inbound.Price, p))
		}
	}
	return result
}

// matchSplit pairs each outbound date with the inbound leg exactly
// TripLengthDays later by direct map lookup, O(1) per outbound date.
func matchSplit(src CalendarSource, p MatchParams) MatchResult {
	var result MatchResult

	dates := make([]string, 0, len(src.outbound))
	for date := range src.outbound {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, dateStr := range dates {
		outboundDate, err := time.Parse(model.DateFormat, dateStr)
		if err != nil {
			continue
		}
		if !p.Window.Contains(outboundDate) {
			continue
		}
		outboundPrice := src.outbound[dateStr]

		result.OneWays = append(result.OneWays,
			oneWay(model.PriceObservation{Date: outboundDate, Price: outboundPrice}, p))

		inboundDate := outboundDate.AddDate(0, 0, p.TripLengthDays)
		if inboundDate.After(p.Window.End) {
			continue
		}
		inboundPrice, ok := src.inbound[inboundDate.Format(model.DateFormat)]
		if !ok {
			continue
		}
		result.add(roundTrip(outboundDate, outboundPrice, inboundDate, inboundPrice, p))
	}
	return result
}

func (r *MatchResult) add(combo model.Combination) {
	r.RoundTrips = append(r.RoundTrips, combo)
	if r.BestRoundTrip == nil || combo.TotalUSD < r.BestRoundTrip.TotalUSD {
		best := combo
		r.BestRoundTrip = &best
	}
}

func oneWay(obs model.PriceObservation, p MatchParams) model.Combination {
	return model.Combination{
		Destination:   p.Destination,
		Provider:      p.Provider,
		OutboundDate:  obs.Date,
		OutboundPrice: obs.Price,
		TotalUSD:      obs.Price,
	}
}

func roundTrip(outDate time.Time, outPrice float64, inDate time.Time, inPrice float64, p MatchParams) model.Combination {
	inboundDate := inDate
	inboundPrice := inPrice
	return model.Combination{
		Destination:   p.Destination,
		Provider:      p.Provider,
		OutboundDate:  outDate,
		InboundDate:   &inboundDate,
		OutboundPrice: outPrice,
		InboundPrice:  &inboundPrice,
		TotalUSD:      model.RoundUSD(outPrice + inPrice),
	}
}

// daysBetween returns the whole-day difference between two midnight dates.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
