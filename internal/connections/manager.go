package connections

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// TimeoutConfig holds the various timeout settings for WebSocket connections
type TimeoutConfig struct {
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// DefaultTimeouts provides sensible default timeout values
var DefaultTimeouts = TimeoutConfig{
	PongWait:   30 * time.Second,
	PingPeriod: 27 * time.Second, // (PongWait * 9) / 10
	WriteWait:  10 * time.Second,
}

// State is where a streaming connection is in its lifecycle.
type State int32

const (
	StateOpen State = iota
	StateProcessing
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateProcessing:
		return "processing"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Conn is the registry entry for one streaming connection.
type Conn struct {
	ID         string
	RemoteAddr string
	OpenedAt   time.Time

	state   atomic.Int32
	closeFn func()
	once    sync.Once
}

func (c *Conn) State() State {
	return State(c.state.Load())
}

// SetState moves the connection to s. Once closing, the state never changes again.
func (c *Conn) SetState(s State) {
	for {
		cur := c.state.Load()
		if State(cur) == StateClosing {
			return
		}
		if c.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Close marks the connection closing and runs its close function once.
func (c *Conn) Close() {
	c.state.Store(int32(StateClosing))
	c.once.Do(func() {
		if c.closeFn != nil {
			c.closeFn()
		}
	})
}

// Manager tracks live streaming connections
type Manager struct {
	connections sync.Map
	mu          sync.RWMutex
	timeouts    TimeoutConfig
}

// NewManager creates a new connection manager with the specified timeouts
func NewManager(timeouts TimeoutConfig) *Manager {
	return &Manager{
		timeouts: timeouts,
	}
}

// Register adds a connection in the open state. closeFn is what CloseAll
// and Conn.Close invoke to tear the transport down.
func (m *Manager) Register(remoteAddr string, closeFn func()) *Conn {
	c := &Conn{
		ID:         ulid.Make().String(),
		RemoteAddr: remoteAddr,
		OpenedAt:   time.Now(),
		closeFn:    closeFn,
	}
	m.connections.Store(c.ID, c)
	return c
}

// Remove drops a connection from the registry
func (m *Manager) Remove(c *Conn) {
	m.connections.Delete(c.ID)
}

// Get returns the connection registered under id
func (m *Manager) Get(id string) (*Conn, bool) {
	v, ok := m.connections.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Conn), true
}

// GetConnectionCount returns the current number of active connections
func (m *Manager) GetConnectionCount() int {
	count := 0
	m.connections.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}

// HasConnection checks if a specific connection exists
func (m *Manager) HasConnection(id string) bool {
	_, exists := m.connections.Load(id)
	return exists
}

// Conns returns the registered connections in no particular order
func (m *Manager) Conns() []*Conn {
	var out []*Conn
	m.connections.Range(func(key, value interface{}) bool {
		out = append(out, value.(*Conn))
		return true
	})
	return out
}

// CloseAll closes every registered connection and returns how many there were
func (m *Manager) CloseAll() int {
	closed := 0
	m.connections.Range(func(key, value interface{}) bool {
		value.(*Conn).Close()
		closed++
		return true
	})
	return closed
}

// GetTimeouts returns the current timeout configuration
func (m *Manager) GetTimeouts() TimeoutConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeouts
}

// SetTimeouts updates the timeout configuration
func (m *Manager) SetTimeouts(timeouts TimeoutConfig) {
	m.mu.Lock()
	m.timeouts = timeouts
	m.mu.Unlock()
}
