package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"farewatch/internal/calendar"
	"farewatch/internal/config"
	"farewatch/internal/database"
	"farewatch/internal/model"
	"farewatch/internal/notify"
	"farewatch/internal/provider"
	"farewatch/internal/stats"
	"farewatch/internal/token"
)

// Driver orchestrates one polling cycle: per region, per provider, per
// destination it fetches raw pages, builds a calendar, matches
// combinations, applies dedup, thresholds and validation, and hands the
// survivors to persistence and notification.
type Driver struct {
	logger    *slog.Logger
	repo      database.Repository
	notifier  notify.Notifier
	clients   map[string]provider.Client
	suppliers map[string]token.Supplier
	cfg       *config.Config
}

// NewDriver creates a new aggregation driver. suppliers is keyed by
// provider name; providers without an entry are assumed to need no token.
func NewDriver(logger *slog.Logger, repo database.Repository, notifier notify.Notifier,
	clients map[string]provider.Client, suppliers map[string]token.Supplier, cfg *config.Config) *Driver {
	return &Driver{
		logger:    logger,
		repo:      repo,
		notifier:  notifier,
		clients:   clients,
		suppliers: suppliers,
		cfg:       cfg,
	}
}

// BestFound is the cheapest one-way and round trip seen for one
// destination/provider, independent of thresholds.
type BestFound struct {
	Region      string
	Provider    string
	Destination string
	OneWay      *model.Combination
	RoundTrip   *model.Combination
}

// CycleResult is the explicit per-cycle outcome. Nothing about a cycle
// lives in process-wide state.
type CycleResult struct {
	Started           time.Time
	Duration          time.Duration
	Deals             []model.Combination
	StoredCount       int
	NotifiedCount     int
	ValidationRejects int
	Best              []BestFound
	Errors            []string
}

// RunCycle executes one complete polling pass over every configured
// region, provider and destination. Failures are contained: the worst
// outcome for any single provider or destination is an empty result set.
func (d *Driver) RunCycle(ctx context.Context) *CycleResult {
	result := &CycleResult{Started: time.Now()}
	defer func() { result.Duration = time.Since(result.Started) }()

	for _, regionName := range sortedKeys(d.cfg.Regions) {
		if ctx.Err() != nil {
			d.logger.Info("cycle interrupted", "region", regionName)
			break
		}
		region := d.cfg.Regions[regionName]

		window, err := region.Window()
		if err != nil {
			d.fail(result, fmt.Sprintf("region %s: %v", regionName, err))
			continue
		}
		thresholds := region.Thresholds.Set()

		for _, providerName := range region.Providers {
			if ctx.Err() != nil {
				break
			}
			client, ok := d.clients[providerName]
			if !ok {
				d.fail(result, fmt.Sprintf("region %s: no client for provider %s", regionName, providerName))
				continue
			}

			if !d.authenticate(ctx, client) {
				d.fail(result, fmt.Sprintf("provider %s: no usable token, skipping cycle", providerName))
				continue
			}

			d.logger.Info("polling provider", "region", regionName, "provider", providerName)
			for _, dest := range region.Destinations {
				if ctx.Err() != nil {
					break
				}
				d.processDestination(ctx, result, regionName, client, dest, window, thresholds)
			}
		}
	}

	d.logger.Info("cycle completed",
		"stored", result.StoredCount,
		"notified", result.NotifiedCount,
		"validationRejects", result.ValidationRejects,
		"errors", len(result.Errors),
		"duration", result.Duration,
	)
	return result
}

// authenticate obtains a per-cycle token for providers that need one.
// Returns false when the provider's cycle must be abandoned.
func (d *Driver) authenticate(ctx context.Context, client provider.Client) bool {
	consumer, needs := client.(provider.TokenConsumer)
	if !needs {
		return true
	}
	supplier, ok := d.suppliers[client.Name()]
	if !ok {
		return false
	}
	tok, err := supplier.Token(ctx)
	if err != nil || tok == "" {
		if err != nil {
			d.logger.Error("token acquisition failed", "provider", client.Name(), "error", err)
		}
		return false
	}
	consumer.UseToken(tok)
	return true
}

// processDestination runs the full pipeline for one destination: fetch,
// normalize, match, dedup, classify, validate, store, notify.
func (d *Driver) processDestination(ctx context.Context, result *CycleResult, regionName string,
	client provider.Client, dest string, window model.DateWindow, thresholds model.ThresholdSet) {

	src, observations, err := d.fetchSource(ctx, client, dest, window)
	if err != nil {
		d.fail(result, fmt.Sprintf("provider %s destination %s: %v", client.Name(), dest, err))
		return
	}

	for _, summary := range stats.Summarize(dest, observations) {
		d.logger.Debug("price summary",
			"provider", client.Name(),
			"destination", summary.Destination,
			"month", summary.Month,
			"count", summary.Count,
			"mean", model.RoundUSD(summary.Mean),
			"median", summary.Median,
			"min", summary.Min,
			"max", summary.Max,
			"gaps", summary.Gaps,
		)
	}

	matched := Match(src, MatchParams{
		Destination:    dest,
		Provider:       client.Name(),
		Window:         window,
		TripLengthDays: d.cfg.TripLengthDays,
	})

	// The ledger scope is one destination, one provider, one cycle.
	ledger := NewLedger()
	stored := 0
	for _, combo := range matched.RoundTrips {
		if d.processCombination(ctx, result, client, ledger, combo, thresholds) {
			stored++
		}
	}
	for _, combo := range matched.OneWays {
		if d.processCombination(ctx, result, client, ledger, combo, thresholds) {
			stored++
		}
	}

	best := BestFound{
		Region:      regionName,
		Provider:    client.Name(),
		Destination: dest,
		OneWay:      cheapestOneWay(matched.OneWays),
		RoundTrip:   matched.BestRoundTrip,
	}
	result.Best = append(result.Best, best)

	if stored == 0 && best.RoundTrip != nil {
		d.logger.Info("nothing stored, best available round trip",
			"provider", client.Name(),
			"destination", dest,
			"outbound", best.RoundTrip.OutboundDate.Format(model.DateFormat),
			"inbound", best.RoundTrip.InboundDate.Format(model.DateFormat),
			"total", best.RoundTrip.TotalUSD,
		)
	}
}

// fetchSource pulls every month page for the window and assembles the
// calendar source matching the provider's capability. Month fetches run
// concurrently under a bounded worker pool; the builder's merge rule is
// commutative, so completion order does not matter. A failed page is
// logged and treated as "no data for those dates".
func (d *Driver) fetchSource(ctx context.Context, client provider.Client, dest string,
	window model.DateWindow) (CalendarSource, []model.PriceObservation, error) {

	months := monthsIn(window)

	switch fetcher := client.(type) {
	case provider.CalendarFetcher:
		builder := calendar.NewBuilder()
		d.forEachMonth(ctx, months, func(ctx context.Context, anchor time.Time) {
			raws, err := fetcher.FetchMonthCalendar(ctx, dest, anchor.Month(), anchor.Year())
			if err != nil {
				d.logger.Warn("month calendar fetch failed", "provider", client.Name(), "destination", dest, "error", err)
				return
			}
			builder.AddRaw(raws, client.Currency(), d.cfg.Rates)
		})
		days := builder.Ordered(window)
		return Unified(days), days, nil

	case provider.LegOffersFetcher:
		outBuilder := calendar.NewBuilder()
		inBuilder := calendar.NewBuilder()
		d.forEachMonth(ctx, months, func(ctx context.Context, anchor time.Time) {
			offers, err := fetcher.FetchLegOffers(ctx, dest, anchor.Month(), anchor.Year())
			if err != nil {
				d.logger.Warn("leg offers fetch failed", "provider", client.Name(), "destination", dest, "error", err)
				return
			}
			outBuilder.AddRaw(offers.Outbound, client.Currency(), d.cfg.Rates)
			inBuilder.AddRaw(offers.Inbound, client.Currency(), d.cfg.Rates)
		})
		src := Split(outBuilder.PriceMap(window), inBuilder.PriceMap(window))
		return src, outBuilder.Ordered(window), nil

	default:
		return CalendarSource{}, nil, fmt.Errorf("provider %s has no fetch capability", client.Name())
	}
}

// forEachMonth runs fn for every month anchor with bounded concurrency.
func (d *Driver) forEachMonth(ctx context.Context, months []time.Time, fn func(context.Context, time.Time)) {
	concurrency := d.cfg.FetchConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, anchor := range months {
		wg.Add(1)
		sem <- struct{}{}
		go func(anchor time.Time) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, anchor)
		}(anchor)
	}
	wg.Wait()
}

// processCombination applies dedup, thresholds and validation to one
// combination and performs the store/notify calls. Returns true when the
// combination was stored.
func (d *Driver) processCombination(ctx context.Context, result *CycleResult, client provider.Client,
	ledger *Ledger, combo model.Combination, thresholds model.ThresholdSet) bool {

	if !ledger.FirstSeen(KeyFor(combo)) {
		return false
	}

	combo.BookingLink = client.DealLink(combo.Destination, combo.OutboundDate, combo.InboundDate)

	class := Classify(combo, thresholds)
	if class == ClassIgnore {
		return false
	}

	if class == ClassStoreAndNotify && !combo.OneWay() {
		if validator, ok := client.(provider.ExactDateValidator); ok {
			if !validator.ValidateExactDate(ctx, combo.Destination, combo.OutboundDate, *combo.InboundDate) {
				result.ValidationRejects++
				d.logger.Debug("combination rejected by exact-date validation",
					"provider", client.Name(),
					"destination", combo.Destination,
					"outbound", combo.OutboundDate.Format(model.DateFormat),
					"inbound", combo.InboundDate.Format(model.DateFormat),
					"total", combo.TotalUSD,
				)
				return false
			}
		}
	}

	if err := d.repo.SaveDeal(ctx, combo); err != nil {
		d.fail(result, fmt.Sprintf("save deal %s %s: %v", combo.Provider, combo.Destination, err))
		return false
	}
	result.Deals = append(result.Deals, combo)
	result.StoredCount++

	if class == ClassStoreAndNotify {
		message := notify.FormatDeal(combo, client.Airline())
		if err := d.notifier.Deliver(ctx, message); err != nil {
			d.fail(result, fmt.Sprintf("notify %s %s: %v", combo.Provider, combo.Destination, err))
		} else {
			result.NotifiedCount++
		}
	}
	return true
}

func (d *Driver) fail(result *CycleResult, msg string) {
	d.logger.Error(msg)
	result.Errors = append(result.Errors, msg)
}

// monthsIn lists the first-of-month anchors covering the window.
func monthsIn(window model.DateWindow) []time.Time {
	var months []time.Time
	anchor := time.Date(window.Start.Year(), window.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !anchor.After(window.End) {
		months = append(months, anchor)
		anchor = anchor.AddDate(0, 1, 0)
	}
	return months
}

func cheapestOneWay(oneWays []model.Combination) *model.Combination {
	var best *model.Combination
	for i := range oneWays {
		if best == nil || oneWays[i].TotalUSD < best.TotalUSD {
			best = &oneWays[i]
		}
	}
	return best
}

func sortedKeys(m map[string]config.RegionConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
