package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"farewatch/internal/calendar"
	"farewatch/internal/config"
	"farewatch/internal/model"
	"farewatch/internal/provider"
	"farewatch/internal/token"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SaveDeal(ctx context.Context, deal model.Combination) error {
	args := m.Called(ctx, deal)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Deliver(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// fakeCalendarProvider serves canned month pages through the unified
// calendar capability.
type fakeCalendarProvider struct {
	mu      sync.Mutex
	pages   map[string][]calendar.RawDayPrice // keyed "YYYY-MM"
	fetches int
}

func (f *fakeCalendarProvider) Name() string             { return "fakeair" }
func (f *fakeCalendarProvider) Airline() string          { return "Fake Air" }
func (f *fakeCalendarProvider) Currency() model.Currency { return model.CurrencyUSD }

func (f *fakeCalendarProvider) DealLink(dest string, outbound time.Time, inbound *time.Time) string {
	return "https://fakeair.test/book/" + dest
}

func (f *fakeCalendarProvider) FetchMonthCalendar(_ context.Context, _ string, month time.Month, year int) ([]calendar.RawDayPrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.pages[fmt.Sprintf("%04d-%02d", year, int(month))], nil
}

// fakeSplitProvider serves leg offers and an exact-date validator, and
// records the token it was handed.
type fakeSplitProvider struct {
	mu            sync.Mutex
	outbound      []calendar.RawDayPrice
	inbound       []calendar.RawDayPrice
	validateOK    bool
	validateCalls [][2]string
	token         string
	fetches       int
}

func (f *fakeSplitProvider) Name() string             { return "fakelegs" }
func (f *fakeSplitProvider) Airline() string          { return "Fake Legs" }
func (f *fakeSplitProvider) Currency() model.Currency { return model.CurrencyUSD }

func (f *fakeSplitProvider) DealLink(dest string, outbound time.Time, inbound *time.Time) string {
	return "https://fakelegs.test/book/" + dest
}

func (f *fakeSplitProvider) UseToken(tok string) { f.token = tok }

func (f *fakeSplitProvider) FetchLegOffers(_ context.Context, _ string, month time.Month, year int) (provider.LegOffers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	// All offers live in the first month page; later pages are empty.
	if f.fetches > 1 {
		return provider.LegOffers{}, nil
	}
	return provider.LegOffers{Outbound: f.outbound, Inbound: f.inbound}, nil
}

func (f *fakeSplitProvider) ValidateExactDate(_ context.Context, dest string, outbound, inbound time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateCalls = append(f.validateCalls, [2]string{
		outbound.Format(model.DateFormat), inbound.Format(model.DateFormat),
	})
	return f.validateOK
}

type failingSupplier struct{}

func (failingSupplier) Token(context.Context) (string, error) {
	return "", errors.New("headless browser crashed")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(providerName string, thresholds config.ThresholdConfig) *config.Config {
	return &config.Config{
		TripLengthDays:   14,
		FetchConcurrency: 2,
		Rates:            model.RateTable{"EUR_USD": 1.17, "ARS_USD": 1200},
		Regions: map[string]config.RegionConfig{
			"spain": {
				Providers:    []string{providerName},
				Destinations: []string{"MAD"},
				StartDate:    "2026-01-01",
				EndDate:      "2026-06-15",
				Thresholds:   thresholds,
			},
		},
	}
}

func fp(v float64) *float64 { return &v }

func TestDriver_RoundTripStoredAndNotified(t *testing.T) {
	fake := &fakeCalendarProvider{pages: map[string][]calendar.RawDayPrice{
		"2026-01": {
			{Date: "2026-01-01", Price: fp(100)},
			{Date: "2026-01-15", Price: fp(100)},
		},
	}}
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	repo.On("SaveDeal", mock.Anything, mock.Anything).Return(nil).Once()
	notifier.On("Deliver", mock.Anything, mock.Anything).Return(nil).Once()

	cfg := testConfig(fake.Name(), config.ThresholdConfig{Store: 300, Notify: 250, OneWay: 50})
	driver := NewDriver(testLogger(), repo, notifier,
		map[string]provider.Client{fake.Name(): fake}, nil, cfg)

	result := driver.RunCycle(context.Background())

	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
	require.Len(t, result.Deals, 1)
	assert.Equal(t, 200.0, result.Deals[0].TotalUSD)
	assert.Equal(t, "https://fakeair.test/book/MAD", result.Deals[0].BookingLink)
	assert.Equal(t, 1, result.StoredCount)
	assert.Equal(t, 1, result.NotifiedCount)
	assert.Empty(t, result.Errors)
}

func TestDriver_OverlappingPagesStoreOnce(t *testing.T) {
	// The same dates appear on two month pages; the calendar merge plus
	// the dedup ledger must yield exactly one store/notify.
	shared := []calendar.RawDayPrice{
		{Date: "2026-01-20", Price: fp(100)},
		{Date: "2026-02-03", Price: fp(100)},
	}
	fake := &fakeCalendarProvider{pages: map[string][]calendar.RawDayPrice{
		"2026-01": shared,
		"2026-02": shared,
	}}
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	repo.On("SaveDeal", mock.Anything, mock.Anything).Return(nil).Once()
	notifier.On("Deliver", mock.Anything, mock.Anything).Return(nil).Once()

	cfg := testConfig(fake.Name(), config.ThresholdConfig{Store: 300, Notify: 250, OneWay: 50})
	driver := NewDriver(testLogger(), repo, notifier,
		map[string]provider.Client{fake.Name(): fake}, nil, cfg)

	result := driver.RunCycle(context.Background())

	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
	assert.Equal(t, 1, result.StoredCount)
}

func TestDriver_StoreOnlyDoesNotNotify(t *testing.T) {
	fake := &fakeCalendarProvider{pages: map[string][]calendar.RawDayPrice{
		"2026-01": {
			{Date: "2026-01-01", Price: fp(430)},
			{Date: "2026-01-15", Price: fp(420)},
		},
	}}
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	repo.On("SaveDeal", mock.Anything, mock.Anything).Return(nil).Once()

	cfg := testConfig(fake.Name(), config.ThresholdConfig{Store: 900, Notify: 800, OneWay: 100})
	driver := NewDriver(testLogger(), repo, notifier,
		map[string]provider.Client{fake.Name(): fake}, nil, cfg)

	result := driver.RunCycle(context.Background())

	repo.AssertExpectations(t)
	notifier.AssertNotCalled(t, "Deliver")
	assert.Equal(t, 1, result.StoredCount)
	assert.Equal(t, 0, result.NotifiedCount)
}

func TestDriver_ValidationFailureDropsCombination(t *testing.T) {
	fake := &fakeSplitProvider{
		outbound:   []calendar.RawDayPrice{{Date: "2026-01-01", Price: fp(90)}},
		inbound:    []calendar.RawDayPrice{{Date: "2026-01-15", Price: fp(90)}},
		validateOK: false,
	}
	repo := new(MockRepository)
	notifier := new(MockNotifier)

	cfg := testConfig(fake.Name(), config.ThresholdConfig{Store: 300, Notify: 250, OneWay: 50})
	driver := NewDriver(testLogger(), repo, notifier,
		map[string]provider.Client{fake.Name(): fake},
		map[string]token.Supplier{fake.Name(): token.Static("tok-123")}, cfg)

	result := driver.RunCycle(context.Background())

	// Priced at 180, below the 250 notify threshold, but the exact-date
	// check failed: not stored, not notified, not in the output list.
	repo.AssertNotCalled(t, "SaveDeal")
	notifier.AssertNotCalled(t, "Deliver")
	assert.Empty(t, result.Deals)
	assert.Equal(t, 1, result.ValidationRejects)
	require.Len(t, fake.validateCalls, 1)
	assert.Equal(t, [2]string{"2026-01-01", "2026-01-15"}, fake.validateCalls[0])
	assert.Equal(t, "tok-123", fake.token)
}

func TestDriver_ValidationSuccessStoresAndNotifies(t *testing.T) {
	fake := &fakeSplitProvider{
		outbound:   []calendar.RawDayPrice{{Date: "2026-01-01", Price: fp(90)}},
		inbound:    []calendar.RawDayPrice{{Date: "2026-01-15", Price: fp(90)}},
		validateOK: true,
	}
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	repo.On("SaveDeal", mock.Anything, mock.Anything).Return(nil).Once()
	notifier.On("Deliver", mock.Anything, mock.Anything).Return(nil).Once()

	cfg := testConfig(fake.Name(), config.ThresholdConfig{Store: 300, Notify: 250, OneWay: 50})
	driver := NewDriver(testLogger(), repo, notifier,
		map[string]provider.Client{fake.Name(): fake},
		map[string]token.Supplier{fake.Name(): token.Static("tok-123")}, cfg)

	result := driver.RunCycle(context.Background())

	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
	assert.Equal(t, 1, result.StoredCount)
	assert.Equal(t, 1, result.NotifiedCount)
}

func TestDriver_StoreOnlySkipsValidation(t *testing.T) {
	fake := &fakeSplitProvider{
		outbound:   []calendar.RawDayPrice{{Date: "2026-01-01", Price: fp(430)}},
		inbound:    []calendar.RawDayPrice{{Date: "2026-01-15", Price: fp(420)}},
		validateOK: false,
	}
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	repo.On("SaveDeal", mock.Anything, mock.Anything).Return(nil).Once()

	cfg := testConfig(fake.Name(), config.ThresholdConfig{Store: 900, Notify: 800, OneWay: 100})
	driver := NewDriver(testLogger(), repo, notifier,
		map[string]provider.Client{fake.Name(): fake},
		map[string]token.Supplier{fake.Name(): token.Static("tok-123")}, cfg)

	driver.RunCycle(context.Background())

	// Validation requests cost budget; store-only combinations never spend it.
	repo.AssertExpectations(t)
	assert.Empty(t, fake.validateCalls)
}

func TestDriver_TokenFailureSkipsProvider(t *testing.T) {
	fake := &fakeSplitProvider{
		outbound: []calendar.RawDayPrice{{Date: "2026-01-01", Price: fp(90)}},
		inbound:  []calendar.RawDayPrice{{Date: "2026-01-15", Price: fp(90)}},
	}
	repo := new(MockRepository)
	notifier := new(MockNotifier)

	cfg := testConfig(fake.Name(), config.ThresholdConfig{Store: 300, Notify: 250, OneWay: 50})
	driver := NewDriver(testLogger(), repo, notifier,
		map[string]provider.Client{fake.Name(): fake},
		map[string]token.Supplier{fake.Name(): failingSupplier{}}, cfg)

	result := driver.RunCycle(context.Background())

	assert.Zero(t, fake.fetches, "no unauthenticated requests")
	repo.AssertNotCalled(t, "SaveDeal")
	assert.NotEmpty(t, result.Errors)
}

func TestDriver_CancelledContextStopsCycle(t *testing.T) {
	fake := &fakeCalendarProvider{pages: map[string][]calendar.RawDayPrice{
		"2026-01": {
			{Date: "2026-01-01", Price: fp(100)},
			{Date: "2026-01-15", Price: fp(100)},
		},
	}}
	repo := new(MockRepository)
	notifier := new(MockNotifier)

	cfg := testConfig(fake.Name(), config.ThresholdConfig{Store: 300, Notify: 250, OneWay: 50})
	driver := NewDriver(testLogger(), repo, notifier,
		map[string]provider.Client{fake.Name(): fake}, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := driver.RunCycle(ctx)

	assert.Zero(t, fake.fetches, "no fetches after shutdown")
	repo.AssertNotCalled(t, "SaveDeal")
	notifier.AssertNotCalled(t, "Deliver")
	assert.Empty(t, result.Deals)
}

func TestDriver_BestRoundTripReportedWhenNothingClears(t *testing.T) {
	fake := &fakeCalendarProvider{pages: map[string][]calendar.RawDayPrice{
		"2026-01": {
			{Date: "2026-01-01", Price: fp(700)},
			{Date: "2026-01-15", Price: fp(700)},
		},
	}}
	repo := new(MockRepository)
	notifier := new(MockNotifier)

	cfg := testConfig(fake.Name(), config.ThresholdConfig{Store: 900, Notify: 800, OneWay: 100})
	driver := NewDriver(testLogger(), repo, notifier,
		map[string]provider.Client{fake.Name(): fake}, nil, cfg)

	result := driver.RunCycle(context.Background())

	repo.AssertNotCalled(t, "SaveDeal")
	require.Len(t, result.Best, 1)
	require.NotNil(t, result.Best[0].RoundTrip)
	assert.Equal(t, 1400.0, result.Best[0].RoundTrip.TotalUSD)
	require.NotNil(t, result.Best[0].OneWay)
	assert.Equal(t, 700.0, result.Best[0].OneWay.TotalUSD)
}

func TestDriver_OneWayNotifiedBelowThreshold(t *testing.T) {
	fake := &fakeCalendarProvider{pages: map[string][]calendar.RawDayPrice{
		"2026-01": {{Date: "2026-01-05", Price: fp(90)}},
	}}
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	repo.On("SaveDeal", mock.Anything, mock.Anything).Return(nil).Once()
	notifier.On("Deliver", mock.Anything, mock.Anything).Return(nil).Once()

	cfg := testConfig(fake.Name(), config.ThresholdConfig{Store: 900, Notify: 800, OneWay: 100})
	driver := NewDriver(testLogger(), repo, notifier,
		map[string]provider.Client{fake.Name(): fake}, nil, cfg)

	result := driver.RunCycle(context.Background())

	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
	require.Len(t, result.Deals, 1)
	assert.True(t, result.Deals[0].OneWay())
}
