package fanout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/domain"
)

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := New()

	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	bus.Publish(domain.EventTransaction, "payload")

	for i, ch := range []<-chan domain.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, domain.EventTransaction, ev.Type)
			assert.Equal(t, "payload", ev.Data)
			assert.False(t, ev.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestBus_CancelRemovesSubscriber(t *testing.T) {
	bus := New()

	ch, cancel := bus.Subscribe()
	require.Equal(t, 1, bus.Subscribers())

	cancel()
	assert.Equal(t, 0, bus.Subscribers())

	// Channel is closed after cancel
	_, open := <-ch
	assert.False(t, open)

	// Double cancel is safe
	cancel()
}

func TestBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := New()
	bus.buffer = 1

	ch, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Second publish overflows the buffer; it must not block
		bus.Publish(domain.EventAlert, 1)
		bus.Publish(domain.EventAlert, 2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	ev := <-ch
	assert.Equal(t, 1, ev.Data)
	select {
	case ev := <-ch:
		t.Fatalf("expected overflow event to be dropped, got %v", ev.Data)
	default:
	}
}
