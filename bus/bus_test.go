// bus/bus_test.go
package bus

import (
	"testing"
	"time"
)

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("config", "panel"))

	conn.Publish(conn.NewMessage(T("config", "panel"), "hello", false))

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "hello" {
			t.Errorf("expected payload 'hello', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("net", "state"), "persist", true))

	sub := conn.Subscribe(T("net", "state"))

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "persist" {
			t.Errorf("expected retained payload 'persist', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for retained message")
	}
}

func TestRetainedClear(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("net", "state"), "v1", true))
	conn.Publish(conn.NewMessage(T("net", "state"), nil, true))

	sub := conn.Subscribe(T("net", "state"))
	if _, ok := sub.TryRecv(); ok {
		t.Fatal("expected no retained message after clear")
	}
}

func TestUnmatchedTopicDropped(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("panel", "pointer"))
	conn.Publish(conn.NewMessage(T("panel", "other"), 1, false))

	if _, ok := sub.TryRecv(); ok {
		t.Fatal("message for another topic must not be delivered")
	}
}

func TestDropOldestWhenFull(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("panel", "pointer"))
	for i := 0; i < 5; i++ {
		conn.Publish(conn.NewMessage(T("panel", "pointer"), i, false))
	}

	// Queue holds the two most recent payloads.
	m1, ok1 := sub.TryRecv()
	m2, ok2 := sub.TryRecv()
	if !ok1 || !ok2 {
		t.Fatal("expected two queued messages")
	}
	if m1.Payload.(int) != 3 || m2.Payload.(int) != 4 {
		t.Fatalf("expected payloads 3,4 got %v,%v", m1.Payload, m2.Payload)
	}
	if _, ok := sub.TryRecv(); ok {
		t.Fatal("queue should be drained")
	}
}

func TestTryRecvNonBlocking(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(T("x"))

	if _, ok := sub.TryRecv(); ok {
		t.Fatal("TryRecv on empty subscription must report false")
	}
}

func TestUnsubscribePrunes(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("a", "b", "c"))
	sub.Unsubscribe()

	// Publishing into the pruned subtree must not panic and must not deliver.
	conn.Publish(conn.NewMessage(T("a", "b", "c"), "late", false))

	if len(b.root.children) != 0 {
		t.Fatalf("expected pruned trie, got %d children", len(b.root.children))
	}
}

func TestDisconnectClosesAll(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	s1 := conn.Subscribe(T("a"))
	s2 := conn.Subscribe(T("b"))
	conn.Disconnect()

	if _, ok := <-s1.Channel(); ok {
		t.Fatal("s1 channel should be closed")
	}
	if _, ok := <-s2.Channel(); ok {
		t.Fatal("s2 channel should be closed")
	}
}
