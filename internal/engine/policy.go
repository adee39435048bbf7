package engine

import (
	"farewatch/internal/model"
)

// Classification is the threshold policy's verdict for one combination.
type Classification int

const (
	ClassIgnore Classification = iota
	ClassStoreOnly
	ClassStoreAndNotify
)

func (c Classification) String() string {
	switch c {
	case ClassStoreOnly:
		return "store-only"
	case ClassStoreAndNotify:
		return "store-and-notify"
	default:
		return "ignore"
	}
}

// Classify maps a combination to a verdict using strict-less-than
// boundaries: a total exactly equal to a threshold does not clear it.
// One-way combinations are notify-or-ignore against the one-way
// threshold; they are never store-only.
func Classify(c model.Combination, t model.ThresholdSet) Classification {
	if c.OneWay() {
		if c.TotalUSD < t.OneWay {
			return ClassStoreAndNotify
		}
		return ClassIgnore
	}
	switch {
	case c.TotalUSD < t.Notify:
		return ClassStoreAndNotify
	case c.TotalUSD < t.Store:
		return ClassStoreOnly
	default:
		return ClassIgnore
	}
}
