package events

import (
	"sync"
	"testing"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	got := 0

	for i := 0; i < 3; i++ {
		bus.Subscribe(TopicProducts, func(Message) {
			mu.Lock()
			got++
			mu.Unlock()
		})
	}

	bus.Publish(Message{Topic: TopicProducts})

	if got != 3 {
		t.Fatalf("delivered to %d subscribers, want 3", got)
	}
}

func TestBus_TopicIsolation(t *testing.T) {
	bus := NewBus()

	called := false
	bus.Subscribe(TopicSales, func(Message) {
		called = true
	})

	bus.Publish(Message{Topic: TopicOrders, OrderID: "o1"})

	if called {
		t.Fatalf("sales subscriber must not receive orders message")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	off := bus.Subscribe(TopicOrders, func(Message) {
		calls++
	})

	bus.Publish(Message{Topic: TopicOrders})
	off()
	off()
	bus.Publish(Message{Topic: TopicOrders})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestBus_PanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(TopicProducts, func(Message) {
		panic("broken subscriber")
	})

	delivered := false
	bus.Subscribe(TopicProducts, func(Message) {
		delivered = true
	})

	bus.Publish(Message{Topic: TopicProducts})

	if !delivered {
		t.Fatalf("second subscriber did not receive message")
	}
}

func TestBus_PublishCarriesOrderID(t *testing.T) {
	bus := NewBus()

	var got Message
	bus.Subscribe(TopicOrders, func(m Message) {
		got = m
	})

	bus.Publish(Message{Topic: TopicOrders, OrderID: "o42"})

	if got.OrderID != "o42" {
		t.Fatalf("orderID = %q, want o42", got.OrderID)
	}
}
