//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"sgchat/domain"
	"sgchat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the in-process presence registry: which users currently
// have which rooms open, and the live sink for each connected user.
// All methods are safe for unsynchronized concurrent callers and never
// touch the store or the network.
type IRegistry interface {
	Register(user domain.UserID, sink EventSink)
	Unregister(user domain.UserID, sink EventSink)

	Join(room domain.RoomID, user domain.UserID)
	Leave(room domain.RoomID, user domain.UserID)
	Snapshot(room domain.RoomID) []domain.UserID
	PruneIfEmpty(room domain.RoomID)

	SinksForRoom(room domain.RoomID) []EventSink
	AllSinks() []EventSink
}

// IDirectory answers room existence and membership questions, backed by
// the store. Room records are cached read-through; membership facts are
// always fetched fresh.
type IDirectory interface {
	Room(room domain.RoomID) (domain.Room, error)
	Rooms() ([]domain.Room, error)
	Members(room domain.RoomID) ([]domain.User, error)
	IsMember(room domain.RoomID, user domain.UserID) (bool, error)
	RoomsForUser(user domain.UserID) ([]domain.Room, error)
	Prime(room domain.Room)
}
