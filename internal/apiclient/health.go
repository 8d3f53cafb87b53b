package apiclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pkt.systems/statesync/internal/eventbus"
)

// DefaultHealthInterval is the probe period when none is configured.
const DefaultHealthInterval = 30 * time.Second

// Health probes /api/health.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/api/health", nil, nil)
}

// HealthPoller probes the server periodically and publishes status changes
// to the bus. The first probe result is always published.
type HealthPoller struct {
	client   *Client
	bus      *eventbus.Bus
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	last   *eventbus.HealthStatus
}

// NewHealthPoller constructs a poller; it does nothing until Start.
func NewHealthPoller(client *Client, bus *eventbus.Bus, interval time.Duration) *HealthPoller {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return &HealthPoller{client: client, bus: bus, interval: interval}
}

// Start runs the probe loop until ctx is done or Stop is called. Starting a
// running poller is a no-op.
func (p *HealthPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop cancels the loop and waits for it to exit.
func (p *HealthPoller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Last returns the most recent probe result.
func (p *HealthPoller) Last() (eventbus.HealthStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return eventbus.HealthStatus{}, false
	}
	return *p.last, true
}

func (p *HealthPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *HealthPoller) probe(ctx context.Context) {
	err := p.client.Health(ctx)
	if ctx.Err() != nil {
		return
	}
	status := eventbus.HealthStatus{Healthy: err == nil}
	if err != nil {
		status.Err = err.Error()
	}

	p.mu.Lock()
	changed := p.last == nil || p.last.Healthy != status.Healthy
	p.last = &status
	p.mu.Unlock()
	if !changed {
		return
	}
	if status.Healthy {
		p.client.log.Info("server healthy")
	} else {
		p.client.log.Warn("server unhealthy", "err", err)
	}
	if p.bus != nil {
		p.bus.OnHealth(status)
	}
}
