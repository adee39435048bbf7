package provider

import (
	"context"
	"time"

	"farewatch/internal/calendar"
	"farewatch/internal/model"
)

// Client is the base interface every airline search provider implements.
// Fetch capabilities are separate interfaces: the aggregation driver
// selects the matching algorithm by asserting which one a client carries.
type Client interface {
	// Name is the provider's config key, e.g. "level".
	Name() string
	// Airline is the display name used in notification messages.
	Airline() string
	// Currency is the currency this provider reports fares in.
	Currency() model.Currency
	// DealLink builds the booking page URL for a deal. A nil inbound
	// means a one-way link.
	DealLink(dest string, outbound time.Time, inbound *time.Time) string
}

// CalendarFetcher is implemented by providers whose API exposes a single
// per-month calendar implying both directions.
type CalendarFetcher interface {
	// FetchMonthCalendar returns the raw day prices for one month.
	// Failures surface as an error with no records; the caller continues
	// with other months.
	FetchMonthCalendar(ctx context.Context, dest string, month time.Month, year int) ([]calendar.RawDayPrice, error)
}

// LegOffers holds a flexible-date query's outbound and inbound leg
// collections.
type LegOffers struct {
	Outbound []calendar.RawDayPrice
	Inbound  []calendar.RawDayPrice
}

// LegOffersFetcher is implemented by providers whose API returns outbound
// and inbound legs as separate collections.
type LegOffersFetcher interface {
	FetchLegOffers(ctx context.Context, dest string, month time.Month, year int) (LegOffers, error)
}

// ExactDateValidator is implemented by providers whose flexible-date
// search can report combinations that are not actually bookable. The
// driver calls it only for combinations that already cleared the notify
// threshold.
type ExactDateValidator interface {
	ValidateExactDate(ctx context.Context, dest string, outbound, inbound time.Time) bool
}

// TokenConsumer is implemented by providers that require a bearer token.
// The driver obtains one token per provider per cycle; if none can be
// produced the provider's entire cycle is skipped.
type TokenConsumer interface {
	UseToken(token string)
}
