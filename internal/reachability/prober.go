// Package reachability reports whether the manifest host accepts
// connections. It backs the nanny's optional host online/offline signal.
package reachability

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/bft-labs/cachenanny/pkg/log"
	"github.com/bft-labs/cachenanny/pkg/loop"
)

const defaultProbeInterval = 15 * time.Second

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Prober dials a host at a fixed cadence and reports transitions.
type Prober struct {
	addr       string
	interval   time.Duration
	dispatcher loop.Dispatcher
	dial       DialFunc
	logger     log.Logger

	mu     sync.Mutex
	subs   map[int]func(bool)
	nextID int
	online *bool
}

// New creates a prober for the host of rawURL. Transitions are delivered
// on dispatcher.
func New(rawURL string, interval time.Duration, dispatcher loop.Dispatcher, logger log.Logger) (*Prober, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	d := &net.Dialer{Timeout: 5 * time.Second}
	return &Prober{
		addr:       net.JoinHostPort(u.Hostname(), port),
		interval:   interval,
		dispatcher: dispatcher,
		dial:       d.DialContext,
		logger:     logger,
		subs:       make(map[int]func(bool)),
	}, nil
}

// Subscribe registers fn for online/offline transitions.
func (p *Prober) Subscribe(fn func(online bool)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Run probes until ctx is canceled. The first probe only records the
// initial state.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.probe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	online := true
	conn, err := p.dial(ctx, "tcp", p.addr)
	if err != nil {
		online = false
	} else {
		_ = conn.Close()
	}

	p.mu.Lock()
	changed := p.online != nil && *p.online != online
	p.online = &online
	fns := make([]func(bool), 0, len(p.subs))
	for id := 0; id < p.nextID; id++ {
		if fn, ok := p.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	if !changed {
		return
	}

	p.logger.Info("host reachability changed", log.String("addr", p.addr), log.Bool("online", online))
	p.dispatcher.Post(func() {
		for _, fn := range fns {
			fn(online)
		}
	})
}
