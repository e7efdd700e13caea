// Package runtime hosts the presence-and-fan-out coordinator: the
// presence registry, the room directory, connection sessions and the
// dispatch pipeline. It orchestrates the system without containing
// storage or transport logic.
package runtime

import (
	"sync"
	"sync/atomic"

	"sgchat/contract"
	"sgchat/domain"
)

// presenceEntry is the present-user set of one room. Each entry carries
// its own lock so mutations on unrelated rooms never contend.
type presenceEntry struct {
	mu    sync.Mutex
	users map[domain.UserID]struct{}
	count atomic.Int32
	// removed marks an entry that was pruned from the room map while a
	// concurrent Join still held a reference to it. Such a Join must
	// restart against a fresh entry instead of resurrecting this one.
	removed bool
}

// Registry tracks two things: the live sink of every connected user, and
// per room the set of users that currently have the room open. It is pure
// in-memory state, rebuilt empty on restart; durable membership lives in
// the repositories. All operations are total: they never fail and never
// block on I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]contract.EventSink
	rooms    map[domain.RoomID]*presenceEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.UserID]contract.EventSink),
		rooms:    make(map[domain.RoomID]*presenceEntry),
	}
}

// Register makes sink the live delivery target for user. A second
// connection for the same user replaces the previous sink (last wins).
func (r *Registry) Register(user domain.UserID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[user] = sink
}

// Unregister removes the user's sink, but only if it still is the given
// one. A stale disconnect from a replaced connection must not tear down
// the newer session's delivery.
func (r *Registry) Unregister(user domain.UserID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[user]; ok && current == sink {
		delete(r.sessions, user)
	}
}

// Join adds the user to the room's present set, creating the entry on
// first open. Idempotent.
func (r *Registry) Join(room domain.RoomID, user domain.UserID) {
	for {
		entry := r.entryOrCreate(room)

		entry.mu.Lock()
		if entry.removed {
			// Lost a race with PruneIfEmpty; the entry is gone from
			// the map. Start over with a fresh one.
			entry.mu.Unlock()
			continue
		}
		if _, ok := entry.users[user]; !ok {
			entry.users[user] = struct{}{}
			entry.count.Add(1)
		}
		entry.mu.Unlock()
		return
	}
}

// Leave removes the user from the room's present set if present.
// Idempotent; leaving a room that has no entry is a no-op.
func (r *Registry) Leave(room domain.RoomID, user domain.UserID) {
	entry := r.entry(room)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	if _, ok := entry.users[user]; ok {
		delete(entry.users, user)
		entry.count.Add(-1)
	}
	entry.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the room's present set.
// Callers never observe later mutations through the returned slice.
func (r *Registry) Snapshot(room domain.RoomID) []domain.UserID {
	entry := r.entry(room)
	if entry == nil {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	users := make([]domain.UserID, 0, len(entry.users))
	for user := range entry.users {
		users = append(users, user)
	}
	return users
}

// PruneIfEmpty removes the room's entry only if it is still empty at the
// moment of removal. The unlocked count read is a fast path; the actual
// emptiness decision is re-taken under both the map lock and the entry
// lock, so a Join racing in between keeps the entry alive instead of
// being silently dropped.
func (r *Registry) PruneIfEmpty(room domain.RoomID) {
	entry := r.entry(room)
	if entry == nil || entry.count.Load() != 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rooms[room]
	if !ok || current != entry {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if len(entry.users) != 0 {
		// A Join won the race; keep the entry.
		return
	}
	entry.removed = true
	delete(r.rooms, room)
}

// SinksForRoom resolves the room's present users to their live sinks.
// Users whose connection vanished between presence cleanup steps simply
// have no sink and are skipped.
func (r *Registry) SinksForRoom(room domain.RoomID) []contract.EventSink {
	users := r.Snapshot(room)
	if len(users) == 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var sinks []contract.EventSink
	for _, user := range users {
		if sink, ok := r.sessions[user]; ok {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// AllSinks returns every connected user's sink; target of global
// broadcasts such as room creation.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, sink := range r.sessions {
		sinks = append(sinks, sink)
	}
	return sinks
}

func (r *Registry) entry(room domain.RoomID) *presenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[room]
}

func (r *Registry) entryOrCreate(room domain.RoomID) *presenceEntry {
	r.mu.RLock()
	entry, ok := r.rooms[room]
	r.mu.RUnlock()
	if ok {
		return entry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok = r.rooms[room]; ok {
		return entry
	}
	entry = &presenceEntry{users: make(map[domain.UserID]struct{})}
	r.rooms[room] = entry
	return entry
}
