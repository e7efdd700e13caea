package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sgchat/domain"
	apperrors "sgchat/errors"
	"sgchat/runtime"
	"sgchat/sink"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// client owns one WebSocket connection. The read pump executes requests
// sequentially against the session; the write pump is the single writer
// on the connection, multiplexing request replies with fan-out events so
// frames never interleave mid-write.
type client struct {
	log     *slog.Logger
	conn    *websocket.Conn
	session *runtime.Session
	sink    *sink.SessionSink
	replies chan Frame
	done    chan struct{}
}

func newClient(log *slog.Logger, conn *websocket.Conn,
	session *runtime.Session, eventSink *sink.SessionSink) *client {
	identity := session.Identity()
	return &client{
		log: log.With(
			slog.String("user_id", identity.ID.String()),
			slog.String("username", identity.Username),
		),
		conn:    conn,
		session: session,
		sink:    eventSink,
		replies: make(chan Frame, 8),
		done:    make(chan struct{}),
	}
}

func (c *client) readPump() {
	defer func() {
		c.session.Disconnect()
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket closed unexpectedly", slog.Any("error", err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.push(errorFrame("", fmt.Errorf("%w: malformed request", apperrors.ErrInvalidArgument)))
			continue
		}

		c.push(c.handle(req))
	}
}

// handle runs one request to completion. Requests on a single connection
// are strictly sequential, which the session relies on.
func (c *client) handle(req Request) Frame {
	switch req.Op {
	case OpCreateRoom:
		room, err := c.session.CreateRoom(req.Name)
		if err != nil {
			return errorFrame(req.ID, err)
		}
		return replyFrame(req.ID, toWireRoom(room))

	case OpJoinRoom:
		room, err := parseRoomID(req.RoomID)
		if err != nil {
			return errorFrame(req.ID, err)
		}
		if err := c.session.JoinRoom(room); err != nil {
			return errorFrame(req.ID, err)
		}
		return replyFrame(req.ID, nil)

	case OpLeaveRoom:
		room, err := parseRoomID(req.RoomID)
		if err != nil {
			return errorFrame(req.ID, err)
		}
		if err := c.session.LeaveRoom(room); err != nil {
			return errorFrame(req.ID, err)
		}
		return replyFrame(req.ID, nil)

	case OpOpenRoom:
		room, err := parseRoomID(req.RoomID)
		if err != nil {
			return errorFrame(req.ID, err)
		}
		result, err := c.session.OpenRoom(room)
		if err != nil {
			return errorFrame(req.ID, err)
		}
		return replyFrame(req.ID, OpenRoomPayload{
			Members:  toWireUsers(result.Members),
			Present:  toWireUsers(result.Present),
			Messages: toWireMessages(result.History),
		})

	case OpCloseRoom:
		room, err := parseRoomID(req.RoomID)
		if err != nil {
			return errorFrame(req.ID, err)
		}
		c.session.CloseRoom(room)
		return replyFrame(req.ID, nil)

	case OpSendMessage:
		room, err := parseRoomID(req.RoomID)
		if err != nil {
			return errorFrame(req.ID, err)
		}
		message, err := c.session.SendMessage(room, req.Content)
		if err != nil {
			return errorFrame(req.ID, err)
		}
		return replyFrame(req.ID, toWireMessage(message))

	default:
		return errorFrame(req.ID, fmt.Errorf("%w: unknown op %q", apperrors.ErrInvalidArgument, req.Op))
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.replies:
			if err := c.write(frame); err != nil {
				return
			}

		case evt := <-c.sink.Events:
			frame, ok := eventFrame(evt)
			if !ok {
				c.log.Warn("unmapped event type", slog.Any("event", evt))
				continue
			}
			if err := c.write(frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

func (c *client) write(frame Frame) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

// push hands a frame to the write pump without blocking forever on a
// dead connection.
func (c *client) push(frame Frame) {
	select {
	case c.replies <- frame:
	case <-c.done:
	}
}

func parseRoomID(raw string) (domain.RoomID, error) {
	room, err := domain.ParseRoomID(raw)
	if err != nil {
		return domain.RoomID{}, fmt.Errorf("%w: bad room id %q", apperrors.ErrInvalidArgument, raw)
	}
	return room, nil
}
