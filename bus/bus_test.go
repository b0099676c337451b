package bus

import (
	"bytes"
	"testing"

	"github.com/ausocean/utils/logging"
)

func testLogger() logging.Logger {
	return logging.New(logging.Debug, &bytes.Buffer{}, true)
}

func TestUnknownCommandRepliesStructuredError(t *testing.T) {
	b := New(testLogger())
	reply := b.Control.Dispatch(Request{Type: "bogus_command"})
	if reply.Success {
		t.Fatalf("expected failure for unknown command")
	}
	want := "Unknown command type: bogus_command"
	if reply.Error != want {
		t.Fatalf("error = %q, want %q", reply.Error, want)
	}
}

func TestPingRegistered(t *testing.T) {
	b := New(testLogger())
	b.Control.Register("ping", func(Request) Reply {
		return Reply{Success: true, Fields: map[string]interface{}{"message": "pong"}}
	})
	reply := b.Control.Dispatch(Request{Type: "ping"})
	if !reply.Success || reply.Fields["message"] != "pong" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestSyncFanOut(t *testing.T) {
	b := New(testLogger())
	var got []Event
	b.Sync.Subscribe(func(e Event) { got = append(got, e) })
	b.Sync.Publish(Event{Type: EventParameterUpdate})
	if len(got) != 1 || got[0].Type != EventParameterUpdate {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestHealthAllOnline(t *testing.T) {
	b := New(testLogger())
	b.Health.Publish("camera", StateOnline, "")
	b.Health.Publish("stimulus", StateDegraded, "slow pre-gen")
	if b.Health.AllOnline([]string{"camera", "stimulus"}) {
		t.Fatalf("expected not all online")
	}
	b.Health.Publish("stimulus", StateOnline, "")
	if !b.Health.AllOnline([]string{"camera", "stimulus"}) {
		t.Fatalf("expected all online")
	}
}
