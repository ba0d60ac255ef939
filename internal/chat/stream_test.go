package chat

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/waste2worth/backend/internal/data"
)

func seedMessages(msgs *fakeMessages, chatID string, texts ...string) {
	base := time.Now().Add(-time.Hour)
	for i, text := range texts {
		msgs.msgs = append(msgs.msgs, &data.Message{
			ID:        bson.NewObjectID(),
			ChatID:    chatID,
			SenderID:  "alice",
			Text:      text,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func texts(msgs []*data.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func waitSnapshot(t *testing.T, ch <-chan []*data.Message) []*data.Message {
	t.Helper()
	select {
	case msgs := <-ch:
		return msgs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a snapshot")
		return nil
	}
}

func TestStreamLiveDeliversOnNotify(t *testing.T) {
	msgs := newFakeMessages()
	hub := NewHub()
	stream := NewStream(msgs, hub)
	seedMessages(msgs, "t1", "first", "second")

	snapshots := make(chan []*data.Message, 16)
	unsubscribe := stream.Subscribe(context.Background(), "t1", func(m []*data.Message) {
		snapshots <- m
	}, nil)
	defer unsubscribe()

	initial := waitSnapshot(t, snapshots)
	if got := texts(initial); len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("initial snapshot = %v", got)
	}

	msgs.mu.Lock()
	msgs.msgs = append(msgs.msgs, &data.Message{
		ID: bson.NewObjectID(), ChatID: "t1", SenderID: "bob", Text: "third", CreatedAt: time.Now(),
	})
	msgs.mu.Unlock()
	hub.Notify("t1")

	next := waitSnapshot(t, snapshots)
	if got := texts(next); len(got) != 3 || got[2] != "third" {
		t.Fatalf("snapshot after notify = %v", got)
	}
}

// TestStreamDegradedFallback covers the ordered query being rejected by
// the store: the feed must stay live, fall back to the unordered fetch
// and sort client-side instead of dying.
func TestStreamDegradedFallback(t *testing.T) {
	msgs := newFakeMessages()
	msgs.orderedErr = data.ErrOrderUnsupported
	msgs.reverse = true
	hub := NewHub()
	stream := NewStream(msgs, hub)
	seedMessages(msgs, "t1", "first", "second", "third")

	snapshots := make(chan []*data.Message, 16)
	var streamErr error
	unsubscribe := stream.Subscribe(context.Background(), "t1", func(m []*data.Message) {
		snapshots <- m
	}, func(err error) { streamErr = err })
	defer unsubscribe()

	initial := waitSnapshot(t, snapshots)
	if got := texts(initial); len(got) != 3 || got[0] != "first" || got[2] != "third" {
		t.Fatalf("degraded snapshot not sorted client-side: %v", got)
	}
	if streamErr != nil {
		t.Fatalf("fallback leaked an error: %v", streamErr)
	}

	// still live after degrading
	msgs.mu.Lock()
	msgs.msgs = append(msgs.msgs, &data.Message{
		ID: bson.NewObjectID(), ChatID: "t1", SenderID: "bob", Text: "fourth", CreatedAt: time.Now(),
	})
	msgs.mu.Unlock()
	hub.Notify("t1")

	next := waitSnapshot(t, snapshots)
	if got := texts(next); len(got) != 4 || got[3] != "fourth" {
		t.Fatalf("degraded feed stopped delivering: %v", got)
	}
}

func TestStreamOneShotWithoutHub(t *testing.T) {
	msgs := newFakeMessages()
	stream := NewStream(msgs, nil)
	seedMessages(msgs, "t1", "only")

	var snapshots [][]*data.Message
	unsubscribe := stream.Subscribe(context.Background(), "t1", func(m []*data.Message) {
		snapshots = append(snapshots, m)
	}, nil)

	if len(snapshots) != 1 {
		t.Fatalf("one-shot delivered %d snapshots, want 1", len(snapshots))
	}
	if got := texts(snapshots[0]); len(got) != 1 || got[0] != "only" {
		t.Fatalf("one-shot snapshot = %v", got)
	}

	// no-op, and safe to call twice
	unsubscribe()
	unsubscribe()
}

func TestStreamNoDeliveryAfterUnsubscribe(t *testing.T) {
	msgs := newFakeMessages()
	hub := NewHub()
	stream := NewStream(msgs, hub)

	snapshots := make(chan []*data.Message, 16)
	unsubscribe := stream.Subscribe(context.Background(), "t1", func(m []*data.Message) {
		snapshots <- m
	}, nil)
	waitSnapshot(t, snapshots)

	unsubscribe()
	hub.Notify("t1")

	select {
	case <-snapshots:
		t.Fatal("got a snapshot after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
	if n := hub.Listeners("t1"); n != 0 {
		t.Fatalf("hub still has %d listeners", n)
	}
}

func TestStreamContextCancelStopsFeed(t *testing.T) {
	msgs := newFakeMessages()
	hub := NewHub()
	stream := NewStream(msgs, hub)

	ctx, cancel := context.WithCancel(context.Background())
	snapshots := make(chan []*data.Message, 16)
	stream.Subscribe(ctx, "t1", func(m []*data.Message) { snapshots <- m }, nil)
	waitSnapshot(t, snapshots)

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Listeners("t1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("listener not released after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSortMessagesZeroTimestampFirst(t *testing.T) {
	now := time.Now()
	msgs := []*data.Message{
		{Text: "late", CreatedAt: now.Add(time.Minute)},
		{Text: "no-ts-a"},
		{Text: "early", CreatedAt: now},
		{Text: "no-ts-b"},
	}

	SortMessages(msgs)

	want := []string{"no-ts-a", "no-ts-b", "early", "late"}
	for i, w := range want {
		if msgs[i].Text != w {
			t.Fatalf("order = %v, want %v", texts(msgs), want)
		}
	}
}
