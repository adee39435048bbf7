package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"farewatch/internal/calendar"
	"farewatch/internal/config"
	"farewatch/internal/model"
)

// AerolineasClient queries the Aerolíneas Argentinas flexible-date offers
// API. Outbound and inbound legs come back as separate collections keyed
// by leg index, so it is a LegOffersFetcher. Flexible-date results are
// optimistic and must be confirmed with an exact-date query before anyone
// is notified, hence ExactDateValidator.
type AerolineasClient struct {
	logger  *slog.Logger
	api     *apiClient
	baseURL string
	webURL  string
	origin  string
	token   string
}

// NewAerolineasClient creates an Aerolíneas provider client.
func NewAerolineasClient(logger *slog.Logger, cfg config.ProviderConfig) *AerolineasClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.aerolineas.com.ar"
	}
	webURL := cfg.WebURL
	if webURL == "" {
		webURL = "https://www.aerolineas.com.ar"
	}
	origin := cfg.Origin
	if origin == "" {
		origin = "BUE"
	}
	return &AerolineasClient{
		logger:  logger,
		api:     newAPIClient(),
		baseURL: baseURL,
		webURL:  webURL,
		origin:  origin,
	}
}

func (a *AerolineasClient) Name() string { return "aerolineas" }

func (a *AerolineasClient) Airline() string { return "Aerolíneas Argentinas" }

func (a *AerolineasClient) Currency() model.Currency { return model.CurrencyARS }

// UseToken sets the bearer token for the current cycle.
func (a *AerolineasClient) UseToken(token string) { a.token = token }

// aerolineasOffer is one flexible-date calendar offer.
type aerolineasOffer struct {
	Departure    string `json:"departure"`
	SoldOut      bool   `json:"soldOut"`
	OfferDetails *struct {
		Fare *struct {
			Total *float64 `json:"total"`
		} `json:"fare"`
		SeatAvailability *struct {
			Seats int `json:"seats"`
		} `json:"seatAvailability"`
	} `json:"offerDetails"`
}

// aerolineasResponse mirrors the offers API payload. calendarOffers is
// keyed by leg index: "0" outbound, "1" inbound.
type aerolineasResponse struct {
	CalendarOffers map[string][]aerolineasOffer `json:"calendarOffers"`
	Offers         []map[string]any             `json:"offers"`
}

// FetchLegOffers runs a flexible-date round-trip query anchored at the
// first day of the month and returns both leg collections.
func (a *AerolineasClient) FetchLegOffers(ctx context.Context, dest string, month time.Month, year int) (LegOffers, error) {
	anchor := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	url := fmt.Sprintf(
		"%s/v1/flights/offers?adt=1&inf=0&chd=0&flexDates=true&cabinClass=Economy&flightType=ROUND_TRIP&leg=%s&leg=%s",
		a.baseURL, a.leg(a.origin, dest, anchor), a.leg(dest, a.origin, anchor),
	)

	var resp aerolineasResponse
	if err := a.api.getJSON(ctx, url, a.headers(), &resp); err != nil {
		return LegOffers{}, fmt.Errorf("aerolineas offers %s %d-%02d: %w", dest, year, int(month), err)
	}

	return LegOffers{
		Outbound: rawDayPrices(resp.CalendarOffers["0"]),
		Inbound:  rawDayPrices(resp.CalendarOffers["1"]),
	}, nil
}

// ValidateExactDate confirms a flexible-date combination with an
// exact-date query. True only when the exact-date search independently
// reports inventory.
func (a *AerolineasClient) ValidateExactDate(ctx context.Context, dest string, outbound, inbound time.Time) bool {
	url := fmt.Sprintf(
		"%s/v1/flights/offers?adt=1&inf=0&chd=0&flexDates=false&cabinClass=Economy&flightType=ROUND_TRIP&leg=%s&leg=%s",
		a.baseURL, a.leg(a.origin, dest, outbound), a.leg(dest, a.origin, inbound),
	)

	var resp aerolineasResponse
	if err := a.api.getJSON(ctx, url, a.headers(), &resp); err != nil {
		a.logger.Debug("exact-date validation request failed", "destination", dest, "error", err)
		return false
	}
	if len(resp.CalendarOffers["0"]) > 0 && len(resp.CalendarOffers["1"]) > 0 {
		return true
	}
	return len(resp.Offers) > 0
}

// DealLink builds the Aerolíneas booking page URL.
func (a *AerolineasClient) DealLink(dest string, outbound time.Time, inbound *time.Time) string {
	if inbound == nil {
		return fmt.Sprintf(
			"%s/flights-offers?adt=1&inf=0&chd=0&flexDates=false&cabinClass=Economy&flightType=ONE_WAY&leg=%s",
			a.webURL, a.leg(a.origin, dest, outbound),
		)
	}
	return fmt.Sprintf(
		"%s/flights-offers?adt=1&inf=0&chd=0&flexDates=false&cabinClass=Economy&flightType=ROUND_TRIP&leg=%s&leg=%s",
		a.webURL, a.leg(a.origin, dest, outbound), a.leg(dest, a.origin, *inbound),
	)
}

func (a *AerolineasClient) leg(from, to string, date time.Time) string {
	return fmt.Sprintf("%s-%s-%s", from, to, date.Format("20060102"))
}

func (a *AerolineasClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + a.token}
}

// rawDayPrices converts one leg's offers to neutral day-price records.
// Sold-out and zero-seat filtering happens in the normalizer.
func rawDayPrices(offers []aerolineasOffer) []calendar.RawDayPrice {
	raws := make([]calendar.RawDayPrice, 0, len(offers))
	for _, offer := range offers {
		raw := calendar.RawDayPrice{Date: offer.Departure, SoldOut: offer.SoldOut}
		if offer.OfferDetails != nil {
			if offer.OfferDetails.Fare != nil {
				raw.Price = offer.OfferDetails.Fare.Total
			}
			if offer.OfferDetails.SeatAvailability != nil {
				seats := offer.OfferDetails.SeatAvailability.Seats
				raw.Seats = &seats
			}
		}
		raws = append(raws, raw)
	}
	return raws
}

var (
	_ Client             = (*AerolineasClient)(nil)
	_ LegOffersFetcher   = (*AerolineasClient)(nil)
	_ ExactDateValidator = (*AerolineasClient)(nil)
	_ TokenConsumer      = (*AerolineasClient)(nil)
)
