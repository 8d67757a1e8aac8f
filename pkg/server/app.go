package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"PriceCast/pkg/config"
	applogger "PriceCast/pkg/logger"
)

// Service is a long-running component with a background Start and a
// graceful Stop, such as the HTTP server or the Kafka consumer.
type Service interface {
	Start() error
	Stop(ctx context.Context) error
}

type namedService struct {
	name string
	svc  Service
}

type closer struct {
	name string
	fn   func() error
}

type ticker struct {
	name     string
	interval time.Duration
	fn       func()
}

// App encapsulates the application lifecycle: services start in the order
// they were added and stop in reverse, then closers run in reverse.
type App struct {
	cfg      *config.Config
	l        *applogger.Logger
	services []namedService
	closers  []closer
	tickers  []ticker
	wg       sync.WaitGroup
}

func New(cfg *config.Config, l *applogger.Logger) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l}
}

// AddService registers a service. Nil services are ignored.
func (a *App) AddService(name string, svc Service) {
	if svc != nil {
		a.services = append(a.services, namedService{name: name, svc: svc})
	}
}

// AddCloser registers a resource released after every service stopped.
func (a *App) AddCloser(name string, fn func() error) {
	if fn != nil {
		a.closers = append(a.closers, closer{name: name, fn: fn})
	}
}

// AddTicker runs fn every interval while the app is up.
func (a *App) AddTicker(name string, interval time.Duration, fn func()) {
	if interval > 0 && fn != nil {
		a.tickers = append(a.tickers, ticker{name: name, interval: interval, fn: fn})
	}
}

// Run starts everything and blocks until ctx is done or SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i, s := range a.services {
		if err := s.svc.Start(); err != nil {
			a.l.Error("service start error", applogger.String("service", s.name), applogger.Error(err))
			a.stopServices(a.services[:i])
			a.runClosers()
			return fmt.Errorf("start %s: %w", s.name, err)
		}
		a.l.Info("service started", applogger.String("service", s.name))
	}

	tickCtx, cancelTicks := context.WithCancel(ctx)
	for _, t := range a.tickers {
		a.wg.Add(1)
		go a.loop(tickCtx, t)
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	cancelTicks()
	a.wg.Wait()

	a.stopServices(a.services)
	a.runClosers()
	a.l.Info("shutdown complete")
	return nil
}

func (a *App) loop(ctx context.Context, t ticker) {
	defer a.wg.Done()
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			t.fn()
		}
	}
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}

func (a *App) stopServices(services []namedService) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	for i := len(services) - 1; i >= 0; i-- {
		s := services[i]
		if err := s.svc.Stop(shutdownCtx); err != nil {
			a.l.Warn("service stop error", applogger.String("service", s.name), applogger.Error(err))
		}
	}
}

func (a *App) runClosers() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
}
