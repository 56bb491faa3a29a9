package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitDeliversToAllHandlers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)

	handler := func(ctx context.Context, ev Event) error {
		defer wg.Done()
		calls.Add(1)
		assert.Equal(t, EventGameCreated, ev.Type)
		return nil
	}
	bus.Subscribe(EventGameCreated, "first", handler)
	bus.Subscribe(EventGameCreated, "second", handler)

	bus.Emit(context.Background(), Event{Type: EventGameCreated, Source: "test"})
	wg.Wait()

	assert.Equal(t, int32(2), calls.Load())
}

func TestEmitIgnoresUnsubscribedType(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	var calls atomic.Int32
	bus.Subscribe(EventGameCreated, "counter", func(ctx context.Context, ev Event) error {
		calls.Add(1)
		return nil
	})
	bus.Unsubscribe(EventGameCreated, "counter")

	bus.Emit(context.Background(), Event{Type: EventGameCreated})
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 0, bus.HandlerCount(EventGameCreated))
}

func TestEmitSyncReturnsFirstError(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	wantErr := errors.New("boom")
	bus.Subscribe(EventGameEnded, "ok", func(ctx context.Context, ev Event) error {
		return nil
	})
	bus.Subscribe(EventGameEnded, "failing", func(ctx context.Context, ev Event) error {
		return wantErr
	})

	err := bus.EmitSync(context.Background(), Event{Type: EventGameEnded})
	require.Error(t, err)
	assert.Equal(t, wantErr, err)
}

func TestPanickingHandlerDoesNotPoisonBus(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	bus.Subscribe(EventRelayStats, "panicky", func(ctx context.Context, ev Event) error {
		panic("handler bug")
	})

	var survived atomic.Bool
	bus.Subscribe(EventRelayStats, "survivor", func(ctx context.Context, ev Event) error {
		survived.Store(true)
		return nil
	})

	err := bus.EmitSync(context.Background(), Event{Type: EventRelayStats})
	assert.NoError(t, err)
	assert.True(t, survived.Load())
}

func TestStopDropsFurtherEvents(t *testing.T) {
	bus := NewEventBus()

	var calls atomic.Int32
	bus.Subscribe(EventShutdown, "counter", func(ctx context.Context, ev Event) error {
		calls.Add(1)
		return nil
	})

	bus.Stop()

	select {
	case <-bus.StopCh():
	default:
		t.Fatal("StopCh should be closed after Stop")
	}

	bus.Emit(context.Background(), Event{Type: EventShutdown})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
