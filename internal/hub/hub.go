// Package hub tracks which live connections are in which party room and fans
// events out to them.
package hub

import (
	"sync"

	"watchparty/backend/internal/partycode"

	"github.com/rs/zerolog/log"
)

// ConnID identifies a live connection for its whole lifetime.
type ConnID string

// Conn is a live connection as seen by the registry. The transport owns it and
// is responsible for closing it.
type Conn interface {
	ID() ConnID
	// TrySend must not block; it returns an error when the frame cannot be queued.
	TrySend(frame []byte) error
}

// PublishResult reports delivery of one broadcast.
type PublishResult struct {
	SentTo  int
	Dropped []ConnID
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// Registry is the process-local set of connections per room. A single lock guards
// both indexes, so joins and leaves on the same room never lose updates.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[ConnID]Conn
	// joined is the reverse index used to clean up on disconnect.
	joined map[ConnID]map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[ConnID]Conn),
		joined: make(map[ConnID]map[string]struct{}),
	}
}

// Join adds conn to the room for code.
func (r *Registry) Join(conn Conn, code string) {
	code = partycode.Normalize(code)
	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[code]; !ok {
		r.rooms[code] = make(map[ConnID]Conn)
	}
	r.rooms[code][id] = conn

	if _, ok := r.joined[id]; !ok {
		r.joined[id] = make(map[string]struct{})
	}
	r.joined[id][code] = struct{}{}
	log.Debug().Str("module", "hub").Str("conn", string(id)).Str("room", code).Int("room_size", len(r.rooms[code])).Msg("joined room")
}

// Leave removes conn from the room for code. It reports whether conn was in it.
func (r *Registry) Leave(conn Conn, code string) bool {
	code = partycode.Normalize(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	left := r.removeLocked(conn.ID(), code)
	if left {
		log.Debug().Str("module", "hub").Str("conn", string(conn.ID())).Str("room", code).Msg("left room")
	}
	return left
}

// Disconnect removes conn from every room it had joined and returns those rooms.
func (r *Registry) Disconnect(conn Conn) []string {
	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]string, 0, len(r.joined[id]))
	for code := range r.joined[id] {
		rooms = append(rooms, code)
	}
	for _, code := range rooms {
		r.removeLocked(id, code)
	}
	delete(r.joined, id)
	log.Debug().Str("module", "hub").Str("conn", string(id)).Strs("rooms", rooms).Msg("disconnected")
	return rooms
}

// CloseRoom removes every connection from the room for code and returns them.
// The connections themselves stay open.
func (r *Registry) CloseRoom(code string) []Conn {
	code = partycode.Normalize(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]Conn, 0, len(r.rooms[code]))
	for id, conn := range r.rooms[code] {
		conns = append(conns, conn)
		if rooms, ok := r.joined[id]; ok {
			delete(rooms, code)
			if len(rooms) == 0 {
				delete(r.joined, id)
			}
		}
	}
	delete(r.rooms, code)
	return conns
}

// MembersInRoom returns a snapshot of the connections currently in the room.
func (r *Registry) MembersInRoom(code string) []Conn {
	code = partycode.Normalize(code)

	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.rooms[code]))
	for _, conn := range r.rooms[code] {
		conns = append(conns, conn)
	}
	return conns
}

// Rooms returns the codes of the rooms conn is in.
func (r *Registry) Rooms(conn Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.joined[conn.ID()]))
	for code := range r.joined[conn.ID()] {
		rooms = append(rooms, code)
	}
	return rooms
}

// Stats returns the number of non-empty rooms and of connections in at least one room.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Rooms: len(r.rooms), Connections: len(r.joined)}
}

// Broadcast sends an event to every connection in the room except the one with id
// except (pass "" to reach everyone). Slow connections drop the frame instead of
// blocking the caller.
func (r *Registry) Broadcast(code string, event Event, except ConnID) PublishResult {
	code = partycode.Normalize(code)
	res := PublishResult{}

	frame, err := event.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("room", code).Str("type", event.Type).Msg("failed to encode event")
		return res
	}

	for _, conn := range r.MembersInRoom(code) {
		if except != "" && conn.ID() == except {
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, conn.ID())
			continue
		}
		res.SentTo++
	}

	if len(res.Dropped) > 0 {
		log.Warn().Str("module", "hub").Str("room", code).Str("type", event.Type).Int("dropped", len(res.Dropped)).Msg("slow consumers, frames dropped")
	}
	log.Debug().Str("module", "hub").Str("room", code).Str("type", event.Type).Int("sent_to", res.SentTo).Msg("broadcast result")
	return res
}

func (r *Registry) removeLocked(id ConnID, code string) bool {
	conns, ok := r.rooms[code]
	if !ok {
		return false
	}
	if _, ok := conns[id]; !ok {
		return false
	}
	delete(conns, id)
	if len(conns) == 0 {
		delete(r.rooms, code)
	}
	if rooms, ok := r.joined[id]; ok {
		delete(rooms, code)
		if len(rooms) == 0 {
			delete(r.joined, id)
		}
	}
	return true
}
