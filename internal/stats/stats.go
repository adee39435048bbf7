// Package stats computes per-cycle price summaries from the calendars a
// cycle produced, for log output. It consumes the engine's observations
// and feeds nothing back into matching.
package stats

import (
	"math"
	"sort"
	"time"

	"farewatch/internal/model"
)

// DatePrice pairs a calendar date string with its observed USD price.
type DatePrice struct {
	Date  string
	Price float64
}

// Summary describes one destination-month's price distribution.
type Summary struct {
	Destination string
	Month       string // "YYYY-MM"
	Count       int
	Mean        float64
	Median      float64
	Min         float64
	Max         float64
	StdDev      float64
	Cheapest    []DatePrice // up to three cheapest dates
	Gaps        int         // runs of consecutive dates with no price
}

// Summarize groups observations by month and computes a Summary per group,
// ordered by month ascending.
func Summarize(destination string, observations []model.PriceObservation) []Summary {
	byMonth := make(map[string][]model.PriceObservation)
	for _, obs := range observations {
		month := obs.Date.Format("2006-01")
		byMonth[month] = append(byMonth[month], obs)
	}

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	summaries := make([]Summary, 0, len(months))
	for _, month := range months {
		summaries = append(summaries, summarizeMonth(destination, month, byMonth[month]))
	}
	return summaries
}

func summarizeMonth(destination, month string, observations []model.PriceObservation) Summary {
	sort.Slice(observations, func(i, j int) bool {
		return observations[i].Date.Before(observations[j].Date)
	})

	prices := make([]float64, len(observations))
	for i, obs := range observations {
		prices[i] = obs.Price
	}

	s := Summary{
		Destination: destination,
		Month:       month,
		Count:       len(prices),
		Mean:        mean(prices),
		Median:      median(prices),
		Min:         minOf(prices),
		Max:         maxOf(prices),
		StdDev:      stddev(prices),
		Cheapest:    cheapest(observations, 3),
		Gaps:        countGaps(observations),
	}
	return s
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func minOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := v[0]
	for _, x := range v[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := v[0]
	for _, x := range v[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func stddev(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	m := mean(v)
	sum := 0.0
	for _, x := range v {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(v)-1))
}

// cheapest returns the n lowest-priced dates, price ascending.
func cheapest(observations []model.PriceObservation, n int) []DatePrice {
	sorted := append([]model.PriceObservation(nil), observations...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	result := make([]DatePrice, len(sorted))
	for i, obs := range sorted {
		result[i] = DatePrice{Date: obs.Date.Format(model.DateFormat), Price: obs.Price}
	}
	return result
}

// countGaps counts runs of missing dates between consecutive priced days.
func countGaps(observations []model.PriceObservation) int {
	gaps := 0
	for i := 1; i < len(observations); i++ {
		if observations[i].Date.Sub(observations[i-1].Date) > 24*time.Hour {
			gaps++
		}
	}
	return gaps
}
