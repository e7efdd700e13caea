package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sgchat/domain"
	"sgchat/domain/event"
	"sgchat/infrastructure/ws"
	"sgchat/projection"

	"github.com/Netflix/go-env"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	Token         string `env:"CHAT_TOKEN,required=true"`
	RoomID        string `env:"CHAT_ROOM_ID,required=true"`
	LogLevel      string `env:"LOG_LEVEL,required=true"`
}

// frame mirrors ws.Frame with a raw payload so each frame type can be
// decoded after the fact.
type frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Error   *ws.WireError   `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

// run handles the WebSocket client lifecycle, configuration loading, and message streaming.
// This pattern ensures clean resource management and error propagation.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	room, err := domain.ParseRoomID(config.RoomID)
	if err != nil {
		return exitConfig, fmt.Errorf("bad CHAT_ROOM_ID: %w", err)
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Establish connection to the chat server.
	target := url.URL{
		Scheme:   "ws",
		Host:     config.ServerAddress,
		Path:     "/ws",
		RawQuery: url.Values{"access_token": {config.Token}}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	// Defer ensures the connection is closed even if the stream fails later.
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	// 4. The connected frame arrives first, then we open the room.
	var connected frame
	if err := conn.ReadJSON(&connected); err != nil {
		return exitRuntime, fmt.Errorf("handshake failed: %w", err)
	}
	if connected.Type != ws.FrameConnected {
		return exitRuntime, fmt.Errorf("unexpected first frame %q", connected.Type)
	}

	if err := conn.WriteJSON(ws.Request{ID: "open-1", Op: ws.OpOpenRoom, RoomID: room.String()}); err != nil {
		return exitRuntime, fmt.Errorf("open room request failed: %w", err)
	}

	log.Info("Connected! Listening (Ctrl+C to quit)...",
		"address", config.ServerAddress, "room", room.String())

	// Close the connection when the user interrupts; ReadJSON then
	// returns an error and the loop below exits.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	// 5. Message reception loop. The local timeline mirrors what the
	// server delivered, history first, then live messages in order.
	timeline := projection.NewTimeline(room)
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				log.Info("Stopping client...", "received", len(timeline.Messages))
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("stream error: %w", err)
		}

		switch f.Type {
		case ws.FrameReply:
			if f.ID != "open-1" {
				continue
			}
			var payload ws.OpenRoomPayload
			if err := json.Unmarshal(f.Payload, &payload); err != nil {
				return exitRuntime, fmt.Errorf("bad open room reply: %w", err)
			}
			timeline.Seed(toMessages(payload.Messages))
			for _, msg := range timeline.Messages {
				printMessage(log, msg)
			}

		case ws.FrameMessageReceived:
			var wire ws.WireMessage
			if err := json.Unmarshal(f.Payload, &wire); err != nil {
				log.Warn("undecodable message frame", "error", err)
				continue
			}
			msg := toMessage(wire)
			timeline.Consume(event.MessageReceived{Message: msg})
			printMessage(log, msg)

		case ws.FrameError:
			return exitRuntime, fmt.Errorf("server error %s: %s", f.Error.Code, f.Error.Message)
		}
	}
}

func printMessage(log *slog.Logger, msg domain.Message) {
	log.Info(fmt.Sprintf("[%s] %s: %s",
		msg.CreatedAt.Format(time.TimeOnly),
		msg.Author.String(),
		msg.Content,
	))
}

func toMessage(wire ws.WireMessage) domain.Message {
	id, _ := domain.ParseMessageID(wire.ID)
	room, _ := domain.ParseRoomID(wire.RoomID)
	author, _ := domain.ParseUserID(wire.AuthorID)
	return domain.Message{
		ID:        id,
		Room:      room,
		Author:    author,
		Content:   wire.Content,
		CreatedAt: wire.CreatedAt,
	}
}

func toMessages(wire []ws.WireMessage) []domain.Message {
	out := make([]domain.Message, len(wire))
	for i, w := range wire {
		out[i] = toMessage(w)
	}
	return out
}
