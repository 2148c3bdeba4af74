package streams

import (
	"fmt"
	"sync"
)

type pair struct {
	send *SendBuffer
	recv *RecvBuffer
}

// Manager is the connection-wide stream registry: it allocates
// locally-initiated stream IDs and tracks every open stream's send and
// receive buffers.
type Manager struct {
	mu      sync.Mutex
	local   Role
	streams map[ID]*pair
	nextIdx uint64
}

// NewManager creates a registry for one endpoint's role.
func NewManager(local Role) *Manager {
	return &Manager{local: local, streams: make(map[ID]*pair)}
}

// OpenLocal allocates a new locally-initiated stream of the given kind.
func (m *Manager) OpenLocal(kind Kind) ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := NewID(m.local, kind, m.nextIdx)
	m.nextIdx++
	m.streams[id] = &pair{send: NewSendBuffer(), recv: NewRecvBuffer()}
	return id
}

// Accept registers a remotely-initiated stream the first time it is
// referenced by an inbound frame, returning its buffers either way.
func (m *Manager) Accept(id ID) (*SendBuffer, *RecvBuffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.streams[id]
	if !ok {
		p = &pair{send: NewSendBuffer(), recv: NewRecvBuffer()}
		m.streams[id] = p
	}
	return p.send, p.recv
}

// Get returns the buffers for an already-known stream.
func (m *Manager) Get(id ID) (*SendBuffer, *RecvBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.streams[id]
	if !ok {
		return nil, nil, fmt.Errorf("streams: unknown stream %d", id)
	}
	return p.send, p.recv, nil
}

// Close removes a stream's state once both directions have finished.
func (m *Manager) Close(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, id)
}

// Open reports every currently tracked stream ID.
func (m *Manager) Open() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]ID, 0, len(m.streams))
	for id := range m.streams {
		ids = append(ids, id)
	}
	return ids
}
