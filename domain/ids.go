// Package domain contains core concepts of the chat system.
// This file defines the identifier value objects.
// Identifiers compare by value only, never by display attributes.
package domain

import "github.com/google/uuid"

type UserID uuid.UUID

type RoomID uuid.UUID

type MessageID uuid.UUID

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewRoomID() RoomID       { return RoomID(uuid.New()) }
func NewMessageID() MessageID { return MessageID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id RoomID) String() string    { return uuid.UUID(id).String() }
func (id MessageID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool { return id == UserID(uuid.Nil) }
func (id RoomID) IsZero() bool { return id == RoomID(uuid.Nil) }

// ParseUserID accepts the canonical UUID text form.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	return UserID(u), err
}

func ParseRoomID(s string) (RoomID, error) {
	u, err := uuid.Parse(s)
	return RoomID(u), err
}

func ParseMessageID(s string) (MessageID, error) {
	u, err := uuid.Parse(s)
	return MessageID(u), err
}
