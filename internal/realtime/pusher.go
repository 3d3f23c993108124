package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SnapshotFunc computes the current state pushed to a topic's subscribers.
type SnapshotFunc func(ctx context.Context) (any, error)

// Pusher owns the periodic republish loops, one per topic. Each loop
// runs while its topic has at least one subscriber and self-terminates
// the tick it observes an empty set, so an idle dashboard topic costs
// nothing.
type Pusher struct {
	hub *Hub

	mu      sync.Mutex
	running map[string]bool

	log *slog.Logger
}

// NewPusher creates a pusher bound to hub. Pass nil logger for default.
func NewPusher(hub *Hub, log *slog.Logger) *Pusher {
	if log == nil {
		log = slog.Default()
	}
	return &Pusher{
		hub:     hub,
		running: make(map[string]bool),
		log:     log.With("component", "realtime_pusher"),
	}
}

// Ensure starts the periodic push loop for topic if it is not already
// running. Safe to call on every subscribe.
func (p *Pusher) Ensure(ctx context.Context, topic string, interval time.Duration, fn SnapshotFunc) {
	p.mu.Lock()
	if p.running[topic] {
		p.mu.Unlock()
		return
	}
	p.running[topic] = true
	p.mu.Unlock()

	go p.loop(ctx, topic, interval, fn)
}

// loop publishes a fresh snapshot every interval. A snapshot failure is
// logged and the loop backs off to twice the interval for that tick
// rather than terminating.
func (p *Pusher) loop(ctx context.Context, topic string, interval time.Duration, fn SnapshotFunc) {
	defer func() {
		p.mu.Lock()
		delete(p.running, topic)
		p.mu.Unlock()
		p.log.Debug("push loop stopped", "topic", topic)
	}()

	p.log.Debug("push loop started", "topic", topic, "interval", interval)

	for {
		if ctx.Err() != nil {
			return
		}
		if p.hub.SubscriberCount(topic) == 0 {
			return
		}

		sleep := interval
		snapshot, err := fn(ctx)
		if err != nil {
			p.log.Error("snapshot failed", "topic", topic, "err", err)
			sleep = interval * 2
		} else {
			p.hub.Publish(topic, snapshot)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}
