package logger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DigestPublisher receives flushed digest batches.
type DigestPublisher interface {
	PublishDigest(ctx context.Context, entries []DigestEntry) error
}

type DigestConfig struct {
	Interval  time.Duration // periodic flush
	MaxUnique int           // flush early once this many distinct entries are held
	Publisher DigestPublisher
}

// DigestEntry is one distinct warning/error with its repeat count.
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Digest folds repeated warnings and errors (for example a provider failing
// on every request) into counted entries and ships them in batches.
type Digest struct {
	cfg     DigestConfig
	mu      sync.Mutex
	entries map[string]*DigestEntry
	now     func() time.Time
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	closed  bool
	// pending tracks early-flush publishes so Close can wait for them.
	pending sync.WaitGroup
}

func NewDigest(cfg DigestConfig) *Digest {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxUnique <= 0 {
		cfg.MaxUnique = 100
	}
	d := &Digest{
		cfg:     cfg,
		entries: make(map[string]*DigestEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Digest) Add(level, msg string, fields map[string]interface{}, caller string) {
	now := d.now()
	key := digestKey(level, msg, fields, caller)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if e, ok := d.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		d.entries[key] = &DigestEntry{
			Level: level, Message: msg, Fields: fields, Caller: caller,
			Count: 1, FirstSeen: now, LastSeen: now,
		}
	}
	var batch []DigestEntry
	if len(d.entries) >= d.cfg.MaxUnique {
		batch = d.drainLocked()
		d.pending.Add(1)
	}
	d.mu.Unlock()

	if batch != nil {
		go func() {
			defer d.pending.Done()
			d.publish(batch)
		}()
	}
}

// Flush drains held entries and returns them, sorted by first occurrence.
func (d *Digest) Flush() []DigestEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drainLocked()
}

func (d *Digest) drainLocked() []DigestEntry {
	if len(d.entries) == 0 {
		return nil
	}
	out := make([]DigestEntry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, *e)
	}
	d.entries = make(map[string]*DigestEntry)
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	return out
}

func (d *Digest) loop() {
	defer close(d.done)
	t := time.NewTicker(d.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if batch := d.Flush(); batch != nil {
				d.publish(batch)
			}
		case <-d.stop:
			if batch := d.Flush(); batch != nil {
				d.publish(batch)
			}
			return
		}
	}
}

func (d *Digest) publish(batch []DigestEntry) {
	if d.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = d.cfg.Publisher.PublishDigest(ctx, batch)
}

// Close stops the flush loop after a final flush and waits for early
// flushes still publishing. Entries added afterwards are dropped.
func (d *Digest) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.stop)
		<-d.done
		d.pending.Wait()
	})
}

func digestKey(level, msg string, fields map[string]interface{}, caller string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte('|')
	b.WriteString(msg)
	b.WriteByte('|')
	b.WriteString(caller)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, fields[k])
	}
	return b.String()
}
