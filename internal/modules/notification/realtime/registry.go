// Package realtime tracks live client connections and pushes persisted
// notifications to them.
package realtime

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrSlowConsumer     = errors.New("connection send buffer is full")
	ErrConnectionClosed = errors.New("connection is closed")
)

var liveConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "tunehub_ws_connections",
	Help: "Number of registered live notification connections.",
})

// Event is the frame written to clients.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn is one live connection. Send must not block.
type Conn interface {
	ID() string
	Send(ev Event) error
	Close() error
}

// Registry maps a user to the set of their live connections. A connection
// id belongs to at most one user at a time.
type Registry struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]map[string]Conn
	owners map[string]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[uuid.UUID]map[string]Conn),
		owners: make(map[string]uuid.UUID),
	}
}

// Register adds conn to userID's set. Registering the same pair twice is a
// no-op; registering an id owned by another user moves it.
func (r *Registry) Register(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	if owner, ok := r.owners[id]; ok && owner != userID {
		r.removeLocked(id, owner)
	}

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]Conn)
		r.users[userID] = set
	}
	set[id] = conn
	r.owners[id] = userID
	liveConnections.Set(float64(len(r.owners)))
}

// Unregister removes connID from userID's set and drops the user entry
// once it is empty.
func (r *Registry) Unregister(connID string, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(connID, userID)
	liveConnections.Set(float64(len(r.owners)))
}

func (r *Registry) removeLocked(connID string, userID uuid.UUID) {
	set, ok := r.users[userID]
	if !ok {
		return
	}
	delete(set, connID)
	if owner, ok := r.owners[connID]; ok && owner == userID {
		delete(r.owners, connID)
	}
	if len(set) == 0 {
		delete(r.users, userID)
	}
}

// ConnectionsFor returns the ids of userID's live connections, sorted.
// Unknown users get an empty slice.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []string {
	conns := r.conns(userID)
	ids := make([]string, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ID())
	}
	return ids
}

// conns is the lookup behind ConnectionsFor, ordered by connection id.
func (r *Registry) conns(userID uuid.UUID) []Conn {
	r.mu.RLock()
	set := r.users[userID]
	out := make([]Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Count returns the number of live connections across all users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// CloseAll closes every registered connection. Their read loops then
// unregister them.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	all := make([]Conn, 0, len(r.owners))
	for _, set := range r.users {
		for _, c := range set {
			all = append(all, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range all {
		_ = c.Close()
	}
}
