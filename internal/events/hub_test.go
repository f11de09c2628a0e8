package events

import (
	"testing"

	"live-interpreter-service/internal/model"
)

func levelEvent(sessionID string, level float64) model.PipelineEvent {
	return model.PipelineEvent{
		Type:       model.EventAudioLevel,
		SessionID:  sessionID,
		AudioLevel: &model.AudioLevelSample{Level: level},
	}
}

func TestHubDeliversToSessionSubscribers(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("s1")
	defer cancel()
	other, cancelOther := h.Subscribe("s2")
	defer cancelOther()

	h.Publish(levelEvent("s1", 0.4))

	ev := <-ch
	if ev.SessionID != "s1" || ev.AudioLevel.Level != 0.4 {
		t.Fatalf("delivered event = %+v, want s1 level 0.4", ev)
	}
	select {
	case ev := <-other:
		t.Fatalf("subscriber of other session received %+v", ev)
	default:
	}
}

func TestHubCancelStopsDelivery(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("s1")
	cancel()
	cancel() // safe to call twice

	if _, ok := <-ch; ok {
		t.Fatal("cancelled subscription channel still open")
	}
	if n := h.SubscriberCount("s1"); n != 0 {
		t.Fatalf("SubscriberCount after cancel = %d, want 0", n)
	}

	// Publishing to a session with no subscribers is a no-op.
	h.Publish(levelEvent("s1", 0.1))
}

func TestHubSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("s1")
	defer cancel()

	// Overfill the buffer; Publish must never block.
	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(levelEvent("s1", float64(i)))
	}

	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			if drained != subscriberBuffer {
				t.Fatalf("drained %d events, want buffer size %d", drained, subscriberBuffer)
			}
			return
		}
	}
}

func TestHubCloseSessionClosesAllFeeds(t *testing.T) {
	h := NewHub()

	a, _ := h.Subscribe("s1")
	b, _ := h.Subscribe("s1")

	h.CloseSession("s1")

	for _, ch := range []<-chan model.PipelineEvent{a, b} {
		if _, ok := <-ch; ok {
			t.Fatal("subscription channel still open after CloseSession")
		}
	}
	if n := h.SubscriberCount("s1"); n != 0 {
		t.Fatalf("SubscriberCount after close = %d, want 0", n)
	}
}

func TestHubSubscribeAfterCloseYieldsClosedChannel(t *testing.T) {
	h := NewHub()
	h.CloseSession("s1")

	ch, cancel := h.Subscribe("s1")
	defer cancel()
	if _, ok := <-ch; ok {
		t.Fatal("subscription to a closed session delivered an event")
	}
}
