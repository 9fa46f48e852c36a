// bus/bus_test.go
package bus

import (
	"testing"
	"time"
)

const (
	TopicConfig = "config"
	TopicGeo    = "geo"
)

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T(TopicConfig, TopicGeo))

	msg := conn.NewMessage(T(TopicConfig, TopicGeo), "hello")
	conn.Publish(msg)

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "hello" {
			t.Errorf("expected payload 'hello', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishOnlyReachesExactTopic(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("transport", "statusbar", "redraw"))
	other := conn.Subscribe(T("transport", "statusbar"))

	conn.Publish(conn.NewMessage(T("transport", "statusbar", "redraw"), []byte("x")))

	expectOneOf(t, sub, "x")
	expectNoMessage(t, other)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T(TopicConfig))
	sub.Unsubscribe()

	conn.Publish(conn.NewMessage(T(TopicConfig), "late"))

	select {
	case _, ok := <-sub.Channel():
		if ok {
			t.Fatal("expected closed channel after Unsubscribe, got a delivered message")
		}
	case <-time.After(60 * time.Millisecond):
		t.Fatal("channel was neither closed nor empty after Unsubscribe")
	}
}

func TestFullChannelDropsOldestMessage(t *testing.T) {
	b := NewBus(1)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T(TopicConfig))
	conn.Publish(conn.NewMessage(T(TopicConfig), "first"))
	conn.Publish(conn.NewMessage(T(TopicConfig), "second"))

	expectOneOf(t, sub, "second")
}

func TestDisconnectClosesAllSubscriptions(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("transport")

	a := conn.Subscribe(T("a"))
	c := conn.Subscribe(T("b"))

	conn.Disconnect()

	assertClosed(t, a)
	assertClosed(t, c)
}

func TestTopic_InvalidTokenPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for non-comparable token, got none")
		}
	}()

	// []byte is not comparable, so T should panic
	_ = T([]byte{1, 2, 3})
}

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		var s string
		switch v := got.Payload.(type) {
		case string:
			s = v
		case []byte:
			s = string(v)
		default:
			t.Fatalf("unexpected payload type: %#v", got.Payload)
		}
		if s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func assertClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case _, ok := <-sub.Channel():
		if ok {
			t.Fatalf("expected channel closed, got a message")
		}
	case <-time.After(60 * time.Millisecond):
		t.Fatal("channel was not closed after Disconnect")
	}
}
