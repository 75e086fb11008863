package telegram

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coreconfig "github.com/ilyosbek9531/expense-tracker-bot/core/config"
	"github.com/ilyosbek9531/expense-tracker-bot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

var apiRetries = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "expensebot",
	Subsystem: "tg",
	Name:      "api_retries_total",
	Help:      "Bot API requests retried after a transient network error.",
})

// Collectors returns the Bot API client metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{apiRetries}
}

// newPoller returns a webhook listener or a long poller according to
// telegram.run_mode.
func newPoller(cfg *coreconfig.Config) tele.Poller {
	if strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:   net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	timeout := time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultLongPollTimeout
	}
	return &tele.LongPoller{Timeout: timeout}
}

// HTTPOptions tunes the Bot API client. Zero values take defaults.
type HTTPOptions struct {
	// Timeout bounds one request including retries. It must exceed the
	// long poll timeout.
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// NewHTTPClient returns a client for Bot API calls that retries dial
// failures and timeouts with linear backoff.
func NewHTTPClient(opts HTTPOptions) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: &retryTransport{base: base, retries: opts.Retries, backoff: opts.Backoff},
	}
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for n := 1; n <= t.retries && err != nil && netutil.ShouldRetry(err); n++ {
		next, ok := rewind(req)
		if !ok {
			break
		}
		if werr := wait(req.Context(), t.backoff*time.Duration(n)); werr != nil {
			return nil, werr
		}
		apiRetries.Inc()
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}

// rewind clones req with a fresh body. Requests whose body cannot be
// replayed are not retried.
func rewind(req *http.Request) (*http.Request, bool) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	next.Body = body
	return next, true
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
