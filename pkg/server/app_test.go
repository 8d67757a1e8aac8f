package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeService struct {
	name     string
	rec      *recorder
	startErr error
}

func (f *fakeService) Start() error {
	f.rec.add("start " + f.name)
	return f.startErr
}

func (f *fakeService) Stop(context.Context) error {
	f.rec.add("stop " + f.name)
	return nil
}

func TestRunOrdersStartAndShutdown(t *testing.T) {
	rec := &recorder{}
	a := New(nil, nil)
	a.AddService("http", &fakeService{name: "http", rec: rec})
	a.AddService("kafka", &fakeService{name: "kafka", rec: rec})
	a.AddService("missing", nil)
	a.AddCloser("cache", func() error { rec.add("close cache"); return nil })
	a.AddCloser("publisher", func() error { rec.add("close publisher"); return errors.New("ignored") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.list()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{
		"start http", "start kafka",
		"stop kafka", "stop http",
		"close publisher", "close cache",
	}, rec.list())
}

func TestRunStartFailureStopsStarted(t *testing.T) {
	rec := &recorder{}
	a := New(nil, nil)
	a.AddService("http", &fakeService{name: "http", rec: rec})
	a.AddService("kafka", &fakeService{name: "kafka", rec: rec, startErr: errors.New("no brokers")})
	a.AddCloser("cache", func() error { rec.add("close cache"); return nil })

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start kafka")
	assert.Equal(t, []string{"start http", "start kafka", "stop http", "close cache"}, rec.list())
}

func TestTickerRunsUntilShutdown(t *testing.T) {
	var n atomic.Int32
	a := New(nil, nil)
	a.AddTicker("prune", 2*time.Millisecond, func() { n.Add(1) })
	a.AddTicker("disabled", 0, func() { t.Error("zero interval ticker ran") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
