package chat

import "testing"

func TestHubNotifyWakesAllListeners(t *testing.T) {
	hub := NewHub()

	id1, ch1 := hub.Register("t1")
	id2, ch2 := hub.Register("t1")
	defer hub.Unregister("t1", id1)
	defer hub.Unregister("t1", id2)

	hub.Notify("t1")

	for i, ch := range []<-chan struct{}{ch1, ch2} {
		select {
		case <-ch:
		default:
			t.Errorf("listener %d got no signal", i+1)
		}
	}
}

func TestHubCoalescesPendingSignals(t *testing.T) {
	hub := NewHub()
	id, ch := hub.Register("t1")
	defer hub.Unregister("t1", id)

	hub.Notify("t1")
	hub.Notify("t1")
	hub.Notify("t1")

	<-ch
	select {
	case <-ch:
		t.Error("pending signals were not coalesced into one")
	default:
	}
}

func TestHubNotifyIsScopedToThread(t *testing.T) {
	hub := NewHub()
	id, ch := hub.Register("t1")
	defer hub.Unregister("t1", id)

	hub.Notify("t2")

	select {
	case <-ch:
		t.Error("got a signal for another thread")
	default:
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	id, ch := hub.Register("t1")

	hub.Unregister("t1", id)
	if n := hub.Listeners("t1"); n != 0 {
		t.Fatalf("listeners after unregister = %d, want 0", n)
	}

	hub.Notify("t1")
	select {
	case <-ch:
		t.Error("got a signal after unregister")
	default:
	}

	// unknown ids and threads are ignored
	hub.Unregister("t1", id)
	hub.Unregister("missing", 99)
}
