package sync

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"
)

// ConnectivityMonitor reports whether the remote store is reachable and
// notifies on transitions.
type ConnectivityMonitor interface {
	Online() bool
	OnChange(fn func(online bool)) (unsubscribe func())
}

// ProbeMonitor determines connectivity by polling the store service's
// health endpoint.
type ProbeMonitor struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu        sync.Mutex
	online    bool
	listeners map[int]func(bool)
	nextID    int
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewProbeMonitor creates a monitor probing the given URL. The monitor
// starts offline until the first successful probe.
func NewProbeMonitor(url string, interval time.Duration) *ProbeMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ProbeMonitor{
		url:       url,
		interval:  interval,
		client:    &http.Client{Timeout: 5 * time.Second},
		listeners: make(map[int]func(bool)),
		stop:      make(chan struct{}),
	}
}

// Start begins probing in a goroutine. An immediate probe runs first so
// startup does not wait a full interval for the initial state.
func (m *ProbeMonitor) Start() {
	go func() {
		m.probe()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.probe()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends probing. Safe to call multiple times.
func (m *ProbeMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Online implements ConnectivityMonitor.
func (m *ProbeMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange implements ConnectivityMonitor.
func (m *ProbeMonitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

func (m *ProbeMonitor) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	online := false
	req, err := http.NewRequestWithContext(ctx, "GET", m.url, nil)
	if err == nil {
		resp, err := m.client.Do(req)
		if err == nil {
			resp.Body.Close()
			online = resp.StatusCode < http.StatusInternalServerError
		}
	}

	m.setOnline(online)
}

func (m *ProbeMonitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if online {
		log.Println("Connection restored")
	} else {
		log.Println("Connection lost - switching to offline mode")
	}

	for _, fn := range fns {
		fn(online)
	}
}

// StaticMonitor is a ConnectivityMonitor pinned to a fixed state. It backs
// local-only deployments with no remote store and keeps tests deterministic.
type StaticMonitor struct {
	mu        sync.Mutex
	online    bool
	listeners map[int]func(bool)
	nextID    int
}

// NewStaticMonitor creates a monitor fixed at the given state until Set is
// called.
func NewStaticMonitor(online bool) *StaticMonitor {
	return &StaticMonitor{
		online:    online,
		listeners: make(map[int]func(bool)),
	}
}

// Online implements ConnectivityMonitor.
func (m *StaticMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange implements ConnectivityMonitor.
func (m *StaticMonitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Set flips the state and notifies listeners on a transition.
func (m *StaticMonitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}
