package engine

import "testing"

func TestHubCoalesces(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe()

	h.Publish()
	h.Publish()
	<-ch
	select {
	case <-ch:
		t.Fatal("expected a single pending signal")
	default:
	}

	unsubscribe()
	unsubscribe()
	if n := h.Subscribers(); n != 0 {
		t.Errorf("Subscribers = %d after unsubscribe", n)
	}
	h.Publish()
}

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	a, stopA := h.Subscribe()
	defer stopA()
	b, stopB := h.Subscribe()
	defer stopB()

	h.Publish()
	<-a
	<-b
}
