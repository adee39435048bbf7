package token

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrNoToken is returned when no bearer token appeared in the page's
// network traffic before the timeout.
var ErrNoToken = errors.New("no bearer token observed")

const defaultSniffTimeout = 60 * time.Second

// Sniffer captures a bearer token by loading the airline homepage in
// headless Chrome and watching outgoing requests for an Authorization
// header aimed at the API host.
type Sniffer struct {
	logger  *slog.Logger
	pageURL string
	apiHost string
	timeout time.Duration
}

// NewSniffer creates a token sniffer. apiHost filters which requests are
// inspected, e.g. "api.aerolineas.com.ar".
func NewSniffer(logger *slog.Logger, pageURL, apiHost string) *Sniffer {
	return &Sniffer{
		logger:  logger,
		pageURL: pageURL,
		apiHost: apiHost,
		timeout: defaultSniffTimeout,
	}
}

// Token loads the page and returns the first Bearer token observed.
func (s *Sniffer) Token(ctx context.Context) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()
	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, s.timeout)
	defer cancelTimeout()

	found := make(chan string, 1)
	var once sync.Once

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		req, ok := ev.(*network.EventRequestWillBeSent)
		if !ok {
			return
		}
		if s.apiHost != "" && !strings.Contains(req.Request.URL, s.apiHost) {
			return
		}
		auth, ok := req.Request.Headers["Authorization"].(string)
		if !ok || !strings.HasPrefix(auth, "Bearer ") {
			return
		}
		once.Do(func() {
			found <- strings.TrimPrefix(auth, "Bearer ")
		})
	})

	s.logger.Info("sniffing bearer token", "url", s.pageURL)
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(s.pageURL),
	); err != nil {
		// Navigation may be cut short once the token shows up; only fail
		// if nothing was captured.
		select {
		case tok := <-found:
			return tok, nil
		default:
			return "", err
		}
	}

	select {
	case tok := <-found:
		return tok, nil
	case <-browserCtx.Done():
		return "", ErrNoToken
	}
}

var _ Supplier = (*Sniffer)(nil)
