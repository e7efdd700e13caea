package domain

import "time"

// User is a registered account.
type User struct {
	ID           UserID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserIdentity is the verified identity attached to one connection.
// It is resolved once at connect time and never changes for the life
// of that connection.
type UserIdentity struct {
	ID       UserID
	Username string
}
