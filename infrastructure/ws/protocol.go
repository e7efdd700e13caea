// Package ws is the WebSocket transport: one JSON frame per message,
// requests correlated to replies by client-chosen id, notifications
// pushed as standalone frames. All types here are mirrored on the client
// side and must be kept in sync.
package ws

import (
	"time"

	"sgchat/domain"
	"sgchat/domain/event"
	"sgchat/errors"

	"github.com/samber/lo"
)

// Request operations.
const (
	OpCreateRoom  = "create_room"
	OpJoinRoom    = "join_room"
	OpLeaveRoom   = "leave_room"
	OpOpenRoom    = "open_room"
	OpCloseRoom   = "close_room"
	OpSendMessage = "send_message"
)

// Frame types pushed by the server.
const (
	FrameConnected       = "connected"
	FrameReply           = "reply"
	FrameError           = "error"
	FrameRoomCreated     = "room-created"
	FrameUserJoined      = "user-joined"
	FrameUserLeft        = "user-left"
	FrameUserOpened      = "user-opened"
	FrameUserClosed      = "user-closed"
	FrameMessageReceived = "message-received"
)

// Request is one client-to-server operation. Unused fields stay empty
// depending on Op.
type Request struct {
	ID      string `json:"id"`
	Op      string `json:"op"`
	Name    string `json:"name,omitempty"`
	RoomID  string `json:"room_id,omitempty"`
	Content string `json:"content,omitempty"`
}

// Frame is one server-to-client message. Replies echo the request id;
// notifications carry no id. Errors are first-class structure on the
// frame, not text smuggled into a message string: Code is the stable
// machine-readable taxonomy value, Message the human part.
type Frame struct {
	Type    string     `json:"type"`
	ID      string     `json:"id,omitempty"`
	Error   *WireError `json:"error,omitempty"`
	Payload any        `json:"payload,omitempty"`
}

type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type WireRoom struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type WireUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type WireMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ConnectedPayload struct {
	JoinedRooms    []WireRoom `json:"joined_rooms"`
	AvailableRooms []WireRoom `json:"available_rooms"`
}

type OpenRoomPayload struct {
	Members  []WireUser    `json:"members"`
	Present  []WireUser    `json:"present"`
	Messages []WireMessage `json:"messages"`
}

type PresencePayload struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
}

func toWireRoom(room domain.Room) WireRoom {
	return WireRoom{ID: room.ID.String(), Name: room.Name}
}

func toWireRooms(rooms []domain.Room) []WireRoom {
	return lo.Map(rooms, func(room domain.Room, _ int) WireRoom {
		return toWireRoom(room)
	})
}

func toWireUsers(users []domain.User) []WireUser {
	return lo.Map(users, func(user domain.User, _ int) WireUser {
		return WireUser{ID: user.ID.String(), Username: user.Username}
	})
}

func toWireMessage(message domain.Message) WireMessage {
	return WireMessage{
		ID:        message.ID.String(),
		RoomID:    message.Room.String(),
		AuthorID:  message.Author.String(),
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	}
}

func toWireMessages(messages []domain.Message) []WireMessage {
	return lo.Map(messages, func(message domain.Message, _ int) WireMessage {
		return toWireMessage(message)
	})
}

func errorFrame(id string, err error) Frame {
	return Frame{
		Type: FrameError,
		ID:   id,
		Error: &WireError{
			Code:    string(errors.CodeOf(err)),
			Message: err.Error(),
		},
	}
}

func replyFrame(id string, payload any) Frame {
	return Frame{Type: FrameReply, ID: id, Payload: payload}
}

// eventFrame translates a domain event into its notification frame.
func eventFrame(evt event.DomainEvent) (Frame, bool) {
	switch e := evt.(type) {
	case event.RoomCreated:
		return Frame{Type: FrameRoomCreated, Payload: toWireRoom(e.Room)}, true
	case event.UserJoinedRoom:
		return Frame{Type: FrameUserJoined, Payload: PresencePayload{
			RoomID:   e.Room.String(),
			UserID:   e.User.String(),
			Username: e.Username,
		}}, true
	case event.UserLeftRoom:
		return Frame{Type: FrameUserLeft, Payload: PresencePayload{
			RoomID: e.Room.String(),
			UserID: e.User.String(),
		}}, true
	case event.UserOpenedRoom:
		return Frame{Type: FrameUserOpened, Payload: PresencePayload{
			RoomID: e.Room.String(),
			UserID: e.User.String(),
		}}, true
	case event.UserClosedRoom:
		return Frame{Type: FrameUserClosed, Payload: PresencePayload{
			RoomID: e.Room.String(),
			UserID: e.User.String(),
		}}, true
	case event.MessageReceived:
		return Frame{Type: FrameMessageReceived, Payload: toWireMessage(e.Message)}, true
	default:
		return Frame{}, false
	}
}
