package opqueue

import "sync"

// Connectivity reports the current network state and notifies subscribers of
// transitions.
type Connectivity interface {
	// Online reports whether the network is currently reachable.
	Online() bool
	// Subscribe registers fn to be called on every transition. The returned
	// function cancels the subscription.
	Subscribe(fn func(online bool)) (cancel func())
}

// ManualConnectivity is a Connectivity whose state is driven by SetOnline.
// It is the default source for queues constructed without one and doubles as
// a test fake.
type ManualConnectivity struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(online bool)
	nextID int
}

// NewManualConnectivity creates a source in the given initial state.
func NewManualConnectivity(online bool) *ManualConnectivity {
	return &ManualConnectivity{
		online: online,
		subs:   make(map[int]func(online bool)),
	}
}

// Online implements Connectivity.
func (m *ManualConnectivity) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.online
}

// Subscribe implements Connectivity.
func (m *ManualConnectivity) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SetOnline updates the state and notifies subscribers on a transition.
func (m *ManualConnectivity) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()

		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}
