package events

import (
	"errors"
	"testing"
)

func TestEventBusDeliversWorkflowEvents(t *testing.T) {
	bus := NewEventBus()

	var created, failed []*Event
	bus.Subscribe(EventBookingCreated, func(e *Event) error { created = append(created, e); return nil })
	bus.Subscribe(EventWorkflowFailed, func(e *Event) error { failed = append(failed, e); return nil })

	err := bus.PublishJSON(EventBookingCreated, WorkflowEventPayload{WorkflowID: "wf-1", BookingID: "b1", State: "awaiting_payment_init"})
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if len(created) != 1 || len(failed) != 0 {
		t.Fatalf("expected only the created handler to run, got created=%d failed=%d", len(created), len(failed))
	}

	var payload WorkflowEventPayload
	if err := created[0].Decode(&payload); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if payload.BookingID != "b1" || payload.State != "awaiting_payment_init" {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()
	var ledger, broker int

	bus.Subscribe(EventConfirmationFailed, func(_ *Event) error { ledger++; return nil })
	bus.Subscribe(EventConfirmationFailed, func(_ *Event) error { broker++; return nil })

	bus.Publish(&Event{Type: EventConfirmationFailed})

	if ledger != 1 || broker != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", ledger, broker)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	bus.Publish(&Event{Type: EventBookingLeftPending})
	if err := bus.PublishJSON(EventBookingLeftPending, nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}
	if err := bus.PublishJSON(EventBookingLeftPending, func() {}); err == nil {
		t.Errorf("expected an error for an unencodable payload")
	}
}

func TestEventIDAndDecode(t *testing.T) {
	bus := NewEventBus()
	var got []*Event
	bus.Subscribe(EventBookingCompleted, func(e *Event) error { got = append(got, e); return nil })

	payload := WorkflowEventPayload{WorkflowID: "wf-1", BookingID: "b1", State: "completed"}
	for i := 0; i < 2; i++ {
		if err := bus.PublishJSON(EventBookingCompleted, payload); err != nil {
			t.Fatalf("PublishJSON failed: %v", err)
		}
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("expected distinct event ids, got %q and %q", got[0].ID, got[1].ID)
	}
	if got[0].CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded WorkflowEventPayload
	if err := got[0].Decode(&decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.BookingID != "b1" {
		t.Errorf("expected BookingID b1, got %s", decoded.BookingID)
	}

	bad := &Event{Type: "broken", Payload: []byte("{")}
	if err := bad.Decode(&decoded); err == nil {
		t.Errorf("expected decode error for a truncated payload")
	}
}

func TestSubscribeAllRunsAfterTypedHandlers(t *testing.T) {
	bus := NewEventBus()
	var order []string
	bus.SubscribeAll(func(e *Event) error { order = append(order, "all:"+e.Type); return nil })
	bus.Subscribe("a", func(_ *Event) error { order = append(order, "a"); return nil })

	bus.Publish(&Event{Type: "a"})
	bus.Publish(&Event{Type: "b"})

	want := []string{"a", "all:a", "all:b"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("expected %v, got %v", want, order)
			break
		}
	}
}

func TestEventBusOnError(t *testing.T) {
	bus := NewEventBus()
	var failed []string
	bus.OnError(func(event *Event, err error) {
		failed = append(failed, event.Type+": "+err.Error())
	})
	bus.Subscribe("event", func(_ *Event) error { return errors.New("broker down") })

	bus.Publish(&Event{Type: "event"})

	if len(failed) != 1 || failed[0] != "event: broker down" {
		t.Errorf("unexpected error reports: %v", failed)
	}
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON("event", map[string]int{"a": 1}); err != nil {
		t.Errorf("nil bus should ignore events, got %v", err)
	}
	bus.Publish(&Event{Type: "event"})
}
