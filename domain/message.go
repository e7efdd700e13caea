// Package domain contains core concepts of the chat system.
// This file defines Message and related rules.
// Messages are immutable and validated by the domain.
package domain

import "time"

// Message represents an immutable chat message. Messages are append-only:
// they are created by the dispatcher, never mutated or deleted.
type Message struct {
	ID        MessageID
	Room      RoomID
	Author    UserID
	Content   string
	CreatedAt time.Time
}
