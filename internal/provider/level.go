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

// LevelClient queries the Level month-calendar API. One calendar implies
// both directions, so it is a CalendarFetcher.
type LevelClient struct {
	logger  *slog.Logger
	api     *apiClient
	baseURL string
	webURL  string
	origin  string
}

// NewLevelClient creates a Level provider client.
func NewLevelClient(logger *slog.Logger, cfg config.ProviderConfig) *LevelClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.flylevel.com"
	}
	webURL := cfg.WebURL
	if webURL == "" {
		webURL = baseURL
	}
	origin := cfg.Origin
	if origin == "" {
		origin = "EZE"
	}
	return &LevelClient{
		logger:  logger,
		api:     newAPIClient(),
		baseURL: baseURL,
		webURL:  webURL,
		origin:  origin,
	}
}

func (l *LevelClient) Name() string { return "level" }

func (l *LevelClient) Airline() string { return "Level" }

func (l *LevelClient) Currency() model.Currency { return model.CurrencyEUR }

// levelCalendarResponse mirrors the calendar API payload.
type levelCalendarResponse struct {
	Data struct {
		DayPrices []struct {
			Date  string   `json:"date"`
			Price *float64 `json:"price"`
		} `json:"dayPrices"`
	} `json:"data"`
}

// FetchMonthCalendar returns the per-day prices for one month.
func (l *LevelClient) FetchMonthCalendar(ctx context.Context, dest string, month time.Month, year int) ([]calendar.RawDayPrice, error) {
	url := fmt.Sprintf(
		"%s/nwe/flights/api/calendar/?triptype=RT&origin=%s&destination=%s&month=%02d&year=%d&currencyCode=USD",
		l.baseURL, l.origin, dest, int(month), year,
	)

	var resp levelCalendarResponse
	if err := l.api.getJSON(ctx, url, nil, &resp); err != nil {
		l.logger.Debug("calendar request failed", "destination", dest, "month", int(month), "year", year, "error", err)
		return nil, fmt.Errorf("level calendar %s %d-%02d: %w", dest, year, int(month), err)
	}

	raws := make([]calendar.RawDayPrice, 0, len(resp.Data.DayPrices))
	for _, day := range resp.Data.DayPrices {
		raws = append(raws, calendar.RawDayPrice{Date: day.Date, Price: day.Price})
	}
	return raws, nil
}

// DealLink builds the Level booking page URL.
func (l *LevelClient) DealLink(dest string, outbound time.Time, inbound *time.Time) string {
	dd1 := outbound.Format(model.DateFormat)
	if inbound == nil {
		return fmt.Sprintf(
			"%s/Flight/Select?culture=es-ES&triptype=OW&o1=%s&d1=%s&dd1=%s&ADT=1&CHD=0&INL=0&r=false&mm=false&forcedCurrency=USD&forcedCulture=es-ES&newecom=true&currency=USD",
			l.webURL, l.origin, dest, dd1,
		)
	}
	return fmt.Sprintf(
		"%s/Flight/Select?culture=es-ES&triptype=RT&o1=%s&d1=%s&dd1=%s&ADT=1&CHD=0&INL=0&r=true&mm=false&dd2=%s&forcedCurrency=USD&forcedCulture=es-ES&newecom=true&currency=USD",
		l.webURL, l.origin, dest, dd1, inbound.Format(model.DateFormat),
	)
}

var (
	_ Client          = (*LevelClient)(nil)
	_ CalendarFetcher = (*LevelClient)(nil)
)
