// Package ops runs the operational side listener (health and Prometheus
// metrics) and the cron keepalive ping.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/ilyosbek9531/expense-tracker-bot/core/buildinfo"
	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
)

// DefaultKeepaliveSchedule fires at the top of every minute.
const DefaultKeepaliveSchedule = "0 * * * * *"

// Options configures a Server. An empty Listen disables the HTTP side and
// an empty KeepaliveURL disables the ping.
type Options struct {
	Listen            string
	KeepaliveURL      string
	KeepaliveSchedule string
	// Collectors are registered next to the Go and process collectors.
	Collectors []prometheus.Collector
	Client     *http.Client
}

// Server owns the ops listener and the keepalive scheduler.
type Server struct {
	opts    Options
	reg     *prometheus.Registry
	mux     *http.ServeMux
	cron    *cron.Cron
	started time.Time

	pings *prometheus.CounterVec

	mu   sync.Mutex
	srv  *http.Server
	addr string
}

func New(opts Options) (*Server, error) {
	if opts.KeepaliveSchedule == "" {
		opts.KeepaliveSchedule = DefaultKeepaliveSchedule
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}

	s := &Server{
		opts:    opts,
		reg:     prometheus.NewRegistry(),
		mux:     http.NewServeMux(),
		cron:    cron.New(cron.WithSeconds()),
		started: time.Now(),
		pings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expensebot",
			Subsystem: "ops",
			Name:      "keepalive_total",
			Help:      "Keepalive pings by result.",
		}, []string{"result"}),
	}

	all := append([]prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.pings,
	}, opts.Collectors...)
	for _, c := range all {
		if err := s.reg.Register(c); err != nil {
			return nil, fmt.Errorf("ops: register collector: %w", err)
		}
	}

	s.mux.HandleFunc("/healthz", s.health)
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{Registry: s.reg}))

	if strings.TrimSpace(opts.KeepaliveURL) != "" {
		if _, err := s.cron.AddFunc(opts.KeepaliveSchedule, s.keepalive); err != nil {
			return nil, fmt.Errorf("ops: keepalive schedule %q: %w", opts.KeepaliveSchedule, err)
		}
	}
	return s, nil
}

// Handler serves /healthz and /metrics.
func (s *Server) Handler() http.Handler { return s.mux }

// Addr is the bound listener address once Start has run.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start binds the listener and starts the scheduler. It does not block.
func (s *Server) Start(ctx context.Context) error {
	if s.opts.Listen != "" {
		ln, err := net.Listen("tcp", s.opts.Listen)
		if err != nil {
			return fmt.Errorf("ops: listen %s: %w", s.opts.Listen, err)
		}
		srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
		s.mu.Lock()
		s.srv = srv
		s.addr = ln.Addr().String()
		s.mu.Unlock()

		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(context.Background(), "ops", "listener.fail", slog.String("err", err.Error()))
			}
		}()
		logger.Info(ctx, "ops", "listener.start", slog.String("addr", ln.Addr().String()))
	}

	if len(s.cron.Entries()) > 0 {
		s.cron.Start()
		logger.Info(ctx, "ops", "keepalive.start",
			slog.String("schedule", s.opts.KeepaliveSchedule),
		)
	}
	return nil
}

// Shutdown stops the scheduler, waiting for a running ping, then the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}

	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("ops: shutdown: %w", err)
	}
	logger.Info(ctx, "ops", "listener.stop")
	return nil
}

type healthBody struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Build  string `json:"version"`
	Commit string `json:"commit"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthBody{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Build:  buildinfo.Version,
		Commit: buildinfo.Revision(),
	})
}

func (s *Server) keepalive() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Client.Timeout)
	defer cancel()
	if err := s.ping(ctx); err != nil {
		s.pings.WithLabelValues("error").Inc()
		logger.Warn(ctx, "ops", "keepalive.fail",
			slog.String("url", s.opts.KeepaliveURL),
			slog.String("err", err.Error()),
		)
		return
	}
	s.pings.WithLabelValues("ok").Inc()
	logger.Debug(ctx, "ops", "keepalive.ok", slog.String("url", s.opts.KeepaliveURL))
}

func (s *Server) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.KeepaliveURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("keepalive status: %s", resp.Status)
	}
	return nil
}
