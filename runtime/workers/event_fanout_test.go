package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"sgchat/contract"
	"sgchat/domain"
	"sgchat/domain/event"
	"sgchat/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventFanout_RoomScopedEvent(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockIRegistry(ctrl)

	mockSink := mocks.NewMockEventSink(ctrl)
	roomSinks := []contract.EventSink{mockSink, mockSink}

	fanout := NewEventFanout(log, mockRegistry, nil, 10*time.Second)
	room := domain.NewRoomID()
	evt := event.MessageReceived{Message: domain.Message{Room: room, Content: "hello"}}

	// Given two present sinks for the room
	mockRegistry.EXPECT().SinksForRoom(room).Return(roomSinks).Times(1)
	// Then each receives the event once
	mockSink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(2)

	fanout.Fanout(context.Background(), evt)
}

func TestEventFanout_RoomCreatedGoesToEveryone(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	mockSink := mocks.NewMockEventSink(ctrl)

	fanout := NewEventFanout(log, mockRegistry, nil, 10*time.Second)
	evt := event.RoomCreated{Room: domain.NewRoom("general"), At: time.Now()}

	// Room creation is a global broadcast, not a presence-scoped one
	mockRegistry.EXPECT().AllSinks().Return([]contract.EventSink{mockSink, mockSink, mockSink}).Times(1)
	mockSink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(3)

	fanout.Fanout(context.Background(), evt)
}

func TestEventFanout_SinkTimeout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockIRegistry(ctrl)
	slowSink := mocks.NewMockEventSink(ctrl)
	healthySink := mocks.NewMockEventSink(ctrl)
	room := domain.NewRoomID()

	sinkTimeout := 20 * time.Millisecond
	fanout := NewEventFanout(log, mockRegistry, nil, sinkTimeout)
	evt := event.MessageReceived{Message: domain.Message{Room: room}}

	mockRegistry.EXPECT().SinksForRoom(room).
		Return([]contract.EventSink{slowSink, healthySink}).Times(1)

	// Given a sink that never drains; it must be abandoned at the timeout
	slowSink.EXPECT().Consume(gomock.Any(), evt).
		DoAndReturn(func(ctx context.Context, e event.DomainEvent) error {
			<-ctx.Done()
			return ctx.Err()
		}).Times(1)
	// Then the next sink still gets its delivery
	healthySink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	start := time.Now()
	fanout.Fanout(context.Background(), evt)
	req.Less(time.Since(start), time.Second)
}

func TestEventFanout_Run_StopsOnContextCancel(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockIRegistry(ctrl)
	events := make(chan event.DomainEvent)
	fanout := NewEventFanout(log, mockRegistry, events, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- fanout.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("Fan-out worker did not stop on cancellation")
	}
}
