package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func dialErr() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	done := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "test.retry", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return dialErr()
		}
		close(done)
		return nil
	}))
	<-done
	d.Close()
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherStopsOnPermanentError(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	before := testutil.ToFloat64(sendsTotal.WithLabelValues("test.permanent", "fail"))
	require.NoError(t, d.Enqueue(context.Background(), "test.permanent", "", func() error {
		calls.Add(1)
		return errors.New("bad request")
	}))
	d.Close()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
	assert.Equal(t, before+1, testutil.ToFloat64(sendsTotal.WithLabelValues("test.permanent", "fail")))
}

func TestDispatcherClosedAndFull(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "a", "", func() error {
		close(started)
		<-block
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "b", "", func() error { return nil }))
	assert.ErrorIs(t, d.Enqueue(context.Background(), "c", "", func() error { return nil }), ErrQueueFull)

	close(block)
	d.Close()
	assert.ErrorIs(t, d.Enqueue(context.Background(), "d", "", func() error { return nil }), ErrQueueClosed)
	assert.Error(t, d.Enqueue(context.Background(), "e", "", nil))
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "", classifyError(nil))
	assert.Equal(t, "timeout", classifyError(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.Equal(t, "dial", classifyError(dialErr()))
	assert.Equal(t, "dns", classifyError(&net.DNSError{Err: "no such host"}))
	assert.Equal(t, "http_4xx", classifyError(&tele.Error{Code: 403}))
	assert.Equal(t, "http_5xx", classifyError(&tele.Error{Code: 502}))
	assert.Equal(t, "unknown", classifyError(errors.New("x")))
}

func TestRedactHidesToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:ABC-def_9/sendMessage": refused`)
	assert.NotContains(t, redact(err), "123:ABC")
	assert.Contains(t, redact(err), "bot<redacted>")
}

func TestSubmitFallsBackInline(t *testing.T) {
	var nilDisp *Dispatcher
	ran := 0
	require.NoError(t, nilDisp.Submit(context.Background(), "x", "", func() error { ran++; return nil }))

	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	require.NoError(t, d.Submit(context.Background(), "x", "", func() error { ran++; return nil }))
	assert.Equal(t, 2, ran)
}

func TestDoWaitsForOutcome(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 1, RetryBackoff: time.Millisecond})
	defer d.Close()

	var calls atomic.Int32
	err := d.Do(context.Background(), "test.do", "sendMessage", func() error {
		if calls.Add(1) == 1 {
			return dialErr()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	err = d.Do(context.Background(), "test.do", "sendMessage", func() error {
		return errors.New("bad request")
	})
	assert.EqualError(t, err, "bad request")
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDoRunsInlineWhenClosedOrNil(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	boom := errors.New("boom")
	assert.ErrorIs(t, d.Do(context.Background(), "test.closed", "", func() error { return boom }), boom)

	var nilDisp *Dispatcher
	assert.ErrorIs(t, nilDisp.Do(context.Background(), "test.nil", "", func() error { return boom }), boom)
}
