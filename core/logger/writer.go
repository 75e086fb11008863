package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

var errWriterClosed = errors.New("logger: writer closed")

// output is one destination. Lines below min are skipped.
type output struct {
	w   io.Writer
	min slog.Level
}

type pending struct {
	level slog.Level
	data  []byte
}

// asyncWriter moves encoding off the hot path: handlers enqueue finished
// lines and a single goroutine writes them to every output.
type asyncWriter struct {
	queue   chan pending
	flushes chan chan error
	done    chan struct{}
	closed  atomic.Bool
	once    sync.Once

	outs []*bufio.Writer
	mins []slog.Level
}

func newAsyncWriter(bufSize int, outs ...output) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 1024
	}
	aw := &asyncWriter{
		queue:   make(chan pending, bufSize),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	for _, o := range outs {
		if o.w == nil {
			continue
		}
		aw.outs = append(aw.outs, bufio.NewWriterSize(o.w, 32<<10))
		aw.mins = append(aw.mins, o.min)
	}
	go aw.loop()
	return aw
}

// Write queues a copy of p. It blocks when the queue is full.
func (aw *asyncWriter) Write(level slog.Level, p []byte) error {
	if aw.closed.Load() {
		return errWriterClosed
	}
	line := pending{level: level, data: append([]byte(nil), p...)}
	select {
	case aw.queue <- line:
		return nil
	case <-aw.done:
		return errWriterClosed
	}
}

// Flush waits until every line queued before the call reaches the outputs.
func (aw *asyncWriter) Flush() error {
	reply := make(chan error, 1)
	select {
	case aw.flushes <- reply:
		return <-reply
	case <-aw.done:
		return nil
	}
}

// Close drains the queue, flushes the outputs and stops the writer.
func (aw *asyncWriter) Close() error {
	var err error
	aw.once.Do(func() {
		err = aw.Flush()
		aw.closed.Store(true)
		close(aw.done)
	})
	return err
}

func (aw *asyncWriter) loop() {
	for {
		select {
		case line := <-aw.queue:
			aw.emit(line)
			if len(aw.queue) == 0 {
				aw.flushOutputs()
			}
		case reply := <-aw.flushes:
			for n := len(aw.queue); n > 0; n-- {
				aw.emit(<-aw.queue)
			}
			reply <- aw.flushOutputs()
		case <-aw.done:
			return
		}
	}
}

func (aw *asyncWriter) emit(line pending) {
	for i, w := range aw.outs {
		if line.level >= aw.mins[i] {
			_, _ = w.Write(line.data)
		}
	}
}

func (aw *asyncWriter) flushOutputs() error {
	var errs []error
	for _, w := range aw.outs {
		if err := w.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
