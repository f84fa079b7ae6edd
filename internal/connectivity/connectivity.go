// Package connectivity reports online/offline transitions to a subscriber.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Monitor delivers online/offline transitions. Subscribe attaches one
// listener and returns a cancel function that detaches it and stops any
// probing done on its behalf.
type Monitor interface {
	Subscribe(fn func(online bool)) (cancel func())
}

// Probe is a Monitor that checks reachability of one URL on a fixed
// interval. The listener is called once with the initial state and then
// only on transitions.
type Probe struct {
	url      string
	client   *http.Client
	interval time.Duration
	log      zerolog.Logger
}

// NewProbe returns a probe monitor for url. A zero interval defaults to
// 30 seconds.
func NewProbe(url string, client *http.Client, interval time.Duration, log zerolog.Logger) *Probe {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Probe{url: url, client: client, interval: interval, log: log}
}

func (p *Probe) Subscribe(fn func(online bool)) (cancel func()) {
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		online := p.check(ctx)
		fn(online)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := p.check(ctx)
				if now != online {
					online = now
					p.log.Debug().Bool("online", online).Msg("connectivity transition")
					fn(online)
				}
			}
		}
	}()

	return func() {
		stop()
		<-done
	}
}

func (p *Probe) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Static is a Monitor driven by test code or by an embedding application
// that already knows its network state.
type Static struct {
	mu        sync.Mutex
	listeners map[int]func(bool)
	next      int
	online    bool
	started   bool
}

// NewStatic returns a monitor whose state is set explicitly via Set.
func NewStatic() *Static {
	return &Static{listeners: make(map[int]func(bool)), online: true}
}

// Set records the new state and notifies listeners on transitions.
func (s *Static) Set(online bool) {
	s.mu.Lock()
	changed := !s.started || s.online != online
	s.started = true
	s.online = online
	var fns []func(bool)
	if changed {
		for _, fn := range s.listeners {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

func (s *Static) Subscribe(fn func(online bool)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	online := s.online
	s.mu.Unlock()

	fn(online)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
