package eventstream

import (
	"testing"
	"time"
)

func TestPublishFansOut(t *testing.T) {
	s := New()
	a, unsubA := s.Subscribe(4)
	b, unsubB := s.Subscribe(4)
	defer unsubA()
	defer unsubB()

	s.Publish("one")

	for _, sub := range []*Subscription{a, b} {
		ev, ok := sub.Next(time.Second, nil)
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		if ev.Heartbeat || ev.Entry != "one" {
			t.Fatalf("event = %+v, want entry \"one\"", ev)
		}
	}
}

func TestHeartbeatOnSilence(t *testing.T) {
	s := New()
	sub, unsub := s.Subscribe(1)
	defer unsub()

	ev, ok := sub.Next(10*time.Millisecond, nil)
	if !ok {
		t.Fatal("subscription closed unexpectedly")
	}
	if !ev.Heartbeat {
		t.Fatalf("event = %+v, want heartbeat", ev)
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	s := New()
	sub, unsub := s.Subscribe(1)
	defer unsub()

	// Buffer of one: the first event sticks, the rest are dropped. Publish
	// must return regardless.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.Publish(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	ev, ok := sub.Next(time.Second, nil)
	if !ok || ev.Entry != 0 {
		t.Fatalf("first event = %+v, %v", ev, ok)
	}
	ev, _ = sub.Next(10*time.Millisecond, nil)
	if !ev.Heartbeat {
		t.Fatalf("expected drops, got %+v", ev)
	}
}

func TestUnsubscribeClosesStream(t *testing.T) {
	s := New()
	sub, unsub := s.Subscribe(1)
	unsub()
	unsub() // idempotent

	if _, ok := sub.Next(time.Second, nil); ok {
		t.Fatal("Next returned ok after unsubscribe")
	}

	// Publishing into a closed subscription must not panic.
	s.Publish("late")
}

func TestNextHonorsDone(t *testing.T) {
	s := New()
	sub, unsub := s.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	close(done)
	if _, ok := sub.Next(time.Hour, done); ok {
		t.Fatal("Next ignored done channel")
	}
}
