package eventbus

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := New[string](0)
	ch := bus.Subscribe()
	bus.Publish("entry")

	if v := <-ch; v != "entry" {
		t.Fatalf("Expected entry, got %v", v)
	}
	bus.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Fatalf("Expected channel closed after Unsubscribe")
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := New[int](1)
	ch := bus.Subscribe()

	bus.Publish(1)
	bus.Publish(2)

	if got := bus.Dropped(); got != 1 {
		t.Errorf("Expected 1 dropped, got %d", got)
	}
	if v := <-ch; v != 1 {
		t.Errorf("Expected first value kept, got %d", v)
	}
}

func TestBusClose(t *testing.T) {
	bus := New[int](0)
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()

	if _, ok := <-ch1; ok {
		t.Fatalf("Expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("Expected ch2 closed")
	}

	// Publishing and unsubscribing after close are no-ops.
	bus.Publish(3)
	bus.Unsubscribe(ch1)

	late := bus.Subscribe()
	if _, ok := <-late; ok {
		t.Fatalf("Expected subscription after close to be closed")
	}
}
