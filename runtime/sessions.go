package runtime

import (
	"log/slog"
	"sync"

	"sgchat/contract"
	"sgchat/domain"
)

// IdentityResolver turns a connection's credential string into a verified
// identity. It is called exactly once per connection, at connect time;
// the session caches the result so disconnect cleanup never needs the
// credential context again (it may already be gone by then).
type IdentityResolver func(token string) (domain.UserIdentity, error)

// Session is the server-side state of one physical connection: the
// cached identity, the connection's sink, and which rooms this
// connection currently has open. Operations on one session arrive
// sequentially from its read loop; openRooms is still guarded because
// Disconnect can be driven from the write side on send failure.
type Session struct {
	identity domain.UserIdentity
	sink     contract.EventSink
	manager  *SessionManager

	mu        sync.Mutex
	openRooms map[domain.RoomID]struct{}
	closed    bool
}

// SessionManager owns connection lifecycles: identity resolution on the
// way in, presence cleanup on the way out. It is injected, not ambient:
// a fresh manager per test isolates all connection state.
type SessionManager struct {
	log         *slog.Logger
	resolve     IdentityResolver
	registry    contract.IRegistry
	coordinator *Coordinator
	dispatcher  *Dispatcher
}

func NewSessionManager(log *slog.Logger, resolve IdentityResolver,
	registry contract.IRegistry, coordinator *Coordinator, dispatcher *Dispatcher) *SessionManager {
	return &SessionManager{
		log:         log,
		resolve:     resolve,
		registry:    registry,
		coordinator: coordinator,
		dispatcher:  dispatcher,
	}
}

// Connect resolves the credentials, registers the connection's sink and
// returns the session together with the caller's room lists.
func (m *SessionManager) Connect(token string, sink contract.EventSink) (*Session, ConnectResult, error) {
	identity, err := m.resolve(token)
	if err != nil {
		return nil, ConnectResult{}, err
	}

	result, err := m.coordinator.Connect(identity, sink)
	if err != nil {
		return nil, ConnectResult{}, err
	}

	m.log.Info("Session connected", "user", identity.ID.String(), "username", identity.Username)
	return &Session{
		identity:  identity,
		sink:      sink,
		manager:   m,
		openRooms: make(map[domain.RoomID]struct{}),
	}, result, nil
}

func (s *Session) Identity() domain.UserIdentity { return s.identity }

func (s *Session) CreateRoom(name string) (domain.Room, error) {
	return s.manager.coordinator.CreateRoom(s.identity, name)
}

func (s *Session) JoinRoom(room domain.RoomID) error {
	return s.manager.coordinator.JoinRoom(s.identity, room)
}

func (s *Session) LeaveRoom(room domain.RoomID) error {
	if err := s.manager.coordinator.LeaveRoom(s.identity, room); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.openRooms, room)
	s.mu.Unlock()
	return nil
}

func (s *Session) OpenRoom(room domain.RoomID) (OpenRoomResult, error) {
	result, err := s.manager.coordinator.OpenRoom(s.identity, room)
	if err != nil {
		return OpenRoomResult{}, err
	}
	s.mu.Lock()
	s.openRooms[room] = struct{}{}
	s.mu.Unlock()
	return result, nil
}

func (s *Session) SendMessage(room domain.RoomID, content string) (domain.Message, error) {
	return s.manager.dispatcher.Send(room, s.identity, content)
}

func (s *Session) CloseRoom(room domain.RoomID) {
	s.manager.coordinator.CloseRoom(s.identity, room)
	s.mu.Lock()
	delete(s.openRooms, room)
	s.mu.Unlock()
}

// Disconnect performs the uncontrolled-transition cleanup: every room
// this connection had open gets the same presence removal and
// notification as an explicit CloseRoom. It is keyed off the session's
// own bookkeeping, never off an assumption that CloseRoom ran first, and
// it is idempotent because transports can report a dead connection more
// than once.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	open := make([]domain.RoomID, 0, len(s.openRooms))
	for room := range s.openRooms {
		open = append(open, room)
	}
	s.openRooms = make(map[domain.RoomID]struct{})
	s.mu.Unlock()

	for _, room := range open {
		s.manager.coordinator.CloseRoom(s.identity, room)
	}
	s.manager.registry.Unregister(s.identity.ID, s.sink)
	s.manager.log.Info("Session disconnected", "user", s.identity.ID.String(), "open_rooms", len(open))
}
