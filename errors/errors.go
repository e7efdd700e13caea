package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// Domain taxonomy. These are terminal for the triggering operation;
	// retries are a client concern.
	ErrUnauthenticated      = fmt.Errorf("unauthenticated")
	ErrInvalidArgument      = fmt.Errorf("invalid argument")
	ErrRoomNotFound         = fmt.Errorf("room not found")
	ErrRoomAlreadyExists    = fmt.Errorf("room already exists")
	ErrUserHasNotJoinedRoom = fmt.Errorf("user has not joined room")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	// ErrStorage wraps persistence I/O failures. It is deliberately
	// distinct from ErrRoomNotFound: absence is a validated business
	// fact, a failing store is transient infrastructure.
	ErrStorage = fmt.Errorf("storage failure")
)

// Code is the stable machine-readable error code carried to clients.
type Code string

const (
	CodeUnauthenticated      Code = "UNAUTHENTICATED"
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
	CodeRoomNotFound         Code = "ROOM_NOT_FOUND"
	CodeRoomAlreadyExists    Code = "ROOM_ALREADY_EXISTS"
	CodeUserHasNotJoinedRoom Code = "USER_HAS_NOT_JOINED_ROOM"
	CodeInternal             Code = "INTERNAL"
)

// CodeOf maps an error chain to its wire code. Anything outside the
// domain taxonomy, including ErrStorage, collapses to INTERNAL so
// infrastructure failures never masquerade as business facts.
func CodeOf(err error) Code {
	switch {
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidCredentials):
		return CodeUnauthenticated
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrUserAlreadyExists):
		return CodeInvalidArgument
	case errors.Is(err, ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, ErrRoomAlreadyExists):
		return CodeRoomAlreadyExists
	case errors.Is(err, ErrUserHasNotJoinedRoom):
		return CodeUserHasNotJoinedRoom
	default:
		return CodeInternal
	}
}
