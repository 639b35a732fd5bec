package realtime

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/events"
)

func newSub(farmID domain.FarmId) *Subscriber {
	return &Subscriber{
		ID:       uuid.New().String(),
		FarmID:   farmID,
		Messages: make(chan []byte, 10),
		Done:     make(chan struct{}),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBroker_StartStop(t *testing.T) {
	broker := NewBroker(testLogger())
	broker.Start()
	broker.Stop()
}

func TestBroker_Subscribe(t *testing.T) {
	broker := NewBroker(testLogger())
	broker.Start()
	defer broker.Stop()

	sub := newSub(42)
	broker.Subscribe(sub)

	broker.mu.RLock()
	subs := broker.subscribers[42]
	broker.mu.RUnlock()
	assert.Len(t, subs, 1)
}

func TestBroker_Unsubscribe(t *testing.T) {
	broker := NewBroker(testLogger())
	broker.Start()
	defer broker.Stop()

	sub := newSub(42)
	broker.Subscribe(sub)
	broker.Unsubscribe(sub)

	broker.mu.RLock()
	subs := broker.subscribers[42]
	broker.mu.RUnlock()
	assert.Len(t, subs, 0)
}

func TestBroker_Broadcast(t *testing.T) {
	broker := NewBroker(testLogger())
	broker.Start()
	defer broker.Stop()

	sub := newSub(42)
	broker.Subscribe(sub)

	farmID := domain.FarmId(42)
	broker.Broadcast(events.Notification{Kind: "UsedItemFound", FarmID: &farmID, MessageKey: "notice.item_found"})

	select {
	case received := <-sub.Messages:
		assert.Contains(t, string(received), "UsedItemFound")
	case <-time.After(200 * time.Millisecond):
		t.Fatal("did not receive event")
	}
}

func TestBroker_BroadcastToMultipleSubscribers(t *testing.T) {
	broker := NewBroker(testLogger())
	broker.Start()
	defer broker.Stop()

	subs := make([]*Subscriber, 3)
	for i := 0; i < 3; i++ {
		subs[i] = newSub(42)
		broker.Subscribe(subs[i])
	}

	farmID := domain.FarmId(42)
	broker.Broadcast(events.Notification{Kind: "UsedItemFound", FarmID: &farmID})

	for i, sub := range subs {
		select {
		case <-sub.Messages:
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("subscriber %d did not receive event", i)
		}
	}
}

func TestBroker_BroadcastOnlyToTargetFarm(t *testing.T) {
	broker := NewBroker(testLogger())
	broker.Start()
	defer broker.Stop()

	sub42 := newSub(42)
	sub99 := newSub(99)
	broker.Subscribe(sub42)
	broker.Subscribe(sub99)

	farmID := domain.FarmId(42)
	broker.Broadcast(events.Notification{Kind: "UsedItemFound", FarmID: &farmID})

	select {
	case <-sub42.Messages:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("farm 42 did not receive")
	}

	select {
	case <-sub99.Messages:
		t.Fatal("farm 99 should not receive")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_BroadcastToAllFarms(t *testing.T) {
	broker := NewBroker(testLogger())
	broker.Start()
	defer broker.Stop()

	sub42 := newSub(42)
	sub99 := newSub(99)
	broker.Subscribe(sub42)
	broker.Subscribe(sub99)

	broker.Broadcast(events.Notification{Kind: "ServerAnnouncement", FarmID: nil})

	for _, sub := range []*Subscriber{sub42, sub99} {
		select {
		case <-sub.Messages:
		case <-time.After(200 * time.Millisecond):
			t.Fatal("expected broadcast-to-all subscriber to receive event")
		}
	}
}

func TestBroker_Stats(t *testing.T) {
	broker := NewBroker(testLogger())
	broker.Start()
	defer broker.Stop()

	for i := 0; i < 2; i++ {
		broker.Subscribe(newSub(42))
	}
	broker.Subscribe(newSub(99))

	stats := broker.Stats()

	assert.Equal(t, 3, stats.TotalConnections)
	assert.Len(t, stats.Farms, 2)
}

func TestBroker_SlowSubscriber(t *testing.T) {
	broker := NewBroker(testLogger())
	broker.Start()
	defer broker.Stop()

	sub := &Subscriber{
		ID:       uuid.New().String(),
		FarmID:   42,
		Messages: make(chan []byte, 5),
		Done:     make(chan struct{}),
	}
	broker.Subscribe(sub)

	farmID := domain.FarmId(42)
	for i := 0; i < 20; i++ {
		broker.Broadcast(events.Notification{Kind: "UsedItemFound", FarmID: &farmID})
	}

	time.Sleep(100 * time.Millisecond)

	count := 0
	for {
		select {
		case <-sub.Messages:
			count++
		case <-time.After(50 * time.Millisecond):
			goto done
		}
	}
done:
	assert.True(t, count > 0)
}
