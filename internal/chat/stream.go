package chat

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/waste2worth/backend/internal/data"
)

// Stream serves live, ordered message feeds for a thread.
//
// The delivery ladder, in order of preference:
//  1. live + ordered: hub-driven re-fetch with a server-side sort;
//  2. live + degraded: if the store reports the ordered query as
//     unsupported, stay live but fetch unordered and sort client-side
//     (messages without a timestamp sort first, treated as older);
//  3. one-shot: with no hub available there is no live mode at all,
//     just one fetch, sorted, delivered once, and a no-op unsubscribe.
//
// Nothing escapes this boundary as a panic; every failure either
// degrades or is routed to the subscriber's error callback.
type Stream struct {
	msgs MessageStore
	hub  *Hub
}

// NewStream wires a Stream. hub may be nil to force one-shot mode.
func NewStream(msgs MessageStore, hub *Hub) *Stream {
	return &Stream{msgs: msgs, hub: hub}
}

// Subscribe starts a feed of all messages in the thread, ascending by
// creation time, delivered as full snapshots via onMessages. The
// returned function cancels the subscription: after it returns no
// further deliveries happen, though in-flight store writes complete
// independently and show up the next time the thread is opened.
func (s *Stream) Subscribe(ctx context.Context, threadID string, onMessages func([]*data.Message), onError func(error)) func() {
	if onError == nil {
		onError = func(error) {}
	}

	degraded := false

	// no live mode available: deliver one snapshot and bail out
	if s.hub == nil {
		msgs, err := s.fetch(ctx, threadID, &degraded)
		if err != nil {
			onError(err)
		} else {
			onMessages(msgs)
		}
		return func() {}
	}

	id, notify := s.hub.Register(threadID)
	done := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.hub.Unregister(threadID, id)
			close(done)
		})
	}

	// initial snapshot; a transient failure here keeps the subscription
	// alive, the next notification retries
	if msgs, err := s.fetch(ctx, threadID, &degraded); err != nil {
		onError(err)
	} else {
		onMessages(msgs)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				unsubscribe()
				return
			case <-done:
				return
			case <-notify:
				msgs, err := s.fetch(ctx, threadID, &degraded)
				select {
				case <-done:
					// unsubscribed while fetching; drop the result
					return
				default:
				}
				if err != nil {
					onError(err)
					continue
				}
				onMessages(msgs)
			}
		}
	}()

	return unsubscribe
}

// fetch loads a sorted snapshot of the thread. Once the ordered query is
// reported unsupported the subscription stays degraded; the client-side
// sort is a correctness requirement there, not an optimization.
func (s *Stream) fetch(ctx context.Context, threadID string, degraded *bool) ([]*data.Message, error) {
	if !*degraded {
		msgs, err := s.msgs.List(ctx, threadID, true)
		if err == nil {
			return msgs, nil
		}
		if !errors.Is(err, data.ErrOrderUnsupported) {
			return nil, err
		}
		*degraded = true
	}

	msgs, err := s.msgs.List(ctx, threadID, false)
	if err != nil {
		return nil, err
	}
	SortMessages(msgs)
	return msgs, nil
}

// SortMessages orders messages ascending by creation time, in place.
// Messages lacking a timestamp sort first. The sort is stable so
// same-instant messages keep their fetch order.
func SortMessages(msgs []*data.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if a.CreatedAt.IsZero() != b.CreatedAt.IsZero() {
			return a.CreatedAt.IsZero()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
