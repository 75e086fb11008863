// Package sender runs outbound Telegram calls on a bounded worker pool with
// retries for transient network failures.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	"github.com/ilyosbek9531/expense-tracker-bot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

var (
	sendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "expensebot",
		Subsystem: "sender",
		Name:      "jobs_total",
		Help:      "Outbound Telegram jobs by action and result.",
	}, []string{"action", "result"})
	sendSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "expensebot",
		Subsystem: "sender",
		Name:      "job_duration_seconds",
		Help:      "Time from first attempt to final result, retries included.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"action"})
	queued = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "expensebot",
		Subsystem: "sender",
		Name:      "queue_depth",
		Help:      "Jobs accepted but not yet picked up by a worker.",
	})
)

// Collectors returns the dispatcher metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{sendsTotal, sendSeconds, queued}
}

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize  int
	Workers    int
	MaxRetries int
	// RetryBackoff grows linearly: attempt n waits n*RetryBackoff.
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
	// done, when set, receives the final outcome of the job.
	done chan<- error
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	out := append(make([]slog.Attr, 0, 2+len(extra)), slog.String("action", j.action))
	if j.endpoint != "" {
		out = append(out, slog.String("endpoint", j.endpoint))
	}
	return append(out, extra...)
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts Options

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup
	once   sync.Once
	errs   atomic.Uint64
}

// NewDispatcher starts the workers; zero options take defaults.
func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{opts: opts.withDefaults()}
	d.jobs = make(chan job, d.opts.QueueSize)
	d.wg.Add(d.opts.Workers)
	for i := 0; i < d.opts.Workers; i++ {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				queued.Dec()
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run without blocking. run may execute more than once
// when it fails with a retryable error.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return d.enqueue(job{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

func (d *Dispatcher) enqueue(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- j:
		queued.Inc()
		return nil
	default:
		sendsTotal.WithLabelValues(j.action, "queue_full").Inc()
		return ErrQueueFull
	}
}

// Submit enqueues run, or runs it inline when d is nil or its queue is
// full or closed.
func (d *Dispatcher) Submit(ctx context.Context, action, endpoint string, run func() error) error {
	if d == nil {
		if run == nil {
			return errors.New("telegram sender: nil run function")
		}
		return run()
	}
	err := d.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// Do runs like Submit but waits for the job's final outcome, retries
// included. A ctx that ends first returns its error; the job still runs.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, run func() error) error {
	if d == nil || run == nil {
		return d.Submit(ctx, action, endpoint, run)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan error, 1)
	err := d.enqueue(job{ctx: ctx, action: action, endpoint: endpoint, run: run, done: done})
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorCount returns the number of jobs that finally failed.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close rejects new jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) process(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts, err := d.attempt(ctx, j)
	elapsed := time.Since(start)
	if j.done != nil {
		j.done <- err
	}
	sendSeconds.WithLabelValues(j.action).Observe(elapsed.Seconds())

	if err != nil {
		d.errs.Add(1)
		sendsTotal.WithLabelValues(j.action, "fail").Inc()
		logger.Error(j.ctx, "tg.sender", "send.fail", j.attrs(
			slog.String("outcome", "fail"),
			slog.String("err", redact(err)),
			slog.String("err_code", classifyError(err)),
			slog.Int("attempts", attempts),
			slog.Duration("duration", elapsed),
		)...)
		return
	}
	sendsTotal.WithLabelValues(j.action, "ok").Inc()
	logger.Debug(j.ctx, "tg.sender", "send.success", j.attrs(
		slog.String("outcome", "ok"),
		slog.Int("attempts", attempts),
		slog.Duration("duration", elapsed),
	)...)
}

// attempt runs j until it succeeds, fails permanently, runs out of retries
// or ctx expires. It returns the number of runs made.
func (d *Dispatcher) attempt(ctx context.Context, j job) (int, error) {
	limit := d.opts.MaxRetries + 1
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return n - 1, err
		}
		err := j.run()
		if err == nil {
			return n, nil
		}
		if n == limit || !netutil.ShouldRetry(err) {
			return n, err
		}
		wait := d.opts.RetryBackoff * time.Duration(n)
		logger.Debug(j.ctx, "tg.sender", "send.retry", j.attrs(
			slog.Int("attempts", n),
			slog.Duration("backoff", wait),
			slog.String("err", redact(err)),
		)...)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return n, ctx.Err()
		case <-t.C:
		}
	}
}

// classifyError maps a send error to a short code for logs.
func classifyError(err error) string {
	var (
		dnsErr   *net.DNSError
		opErr    *net.OpError
		netErr   net.Error
		apiErr   *tele.Error
		floodErr tele.FloodError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &floodErr):
		return "http_429"
	case errors.As(err, &apiErr):
		if apiErr.Code >= http.StatusInternalServerError {
			return "http_5xx"
		}
		if apiErr.Code >= http.StatusBadRequest {
			return "http_4xx"
		}
	}
	return "unknown"
}

// redact hides bot tokens that telebot embeds in request URLs.
func redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
