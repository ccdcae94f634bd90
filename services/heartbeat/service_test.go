package heartbeat

import (
	"context"
	"testing"
	"time"

	"fuelmon-go/bus"
)

func TestHeartbeat_PublishesRetainedUptime(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(16)
	if err := (&Service{}).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		t.Fatal(err)
	}

	watcher := b.NewConnection("watcher")
	sub := watcher.Subscribe(topicUptime)
	defer watcher.Unsubscribe(sub)

	select {
	case msg := <-sub.Channel():
		m, ok := msg.Payload.(map[string]any)
		if !ok {
			t.Fatalf("unexpected payload: %#v", msg.Payload)
		}
		if _, ok := m["uptime_s"]; !ok {
			t.Fatalf("payload missing uptime_s: %v", m)
		}
		if !msg.Retained {
			t.Fatal("uptime message should be retained")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no heartbeat within 3s of start")
	}
}

func TestHeartbeat_IntervalReconfigure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewBus(16)
	if err := (&Service{}).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		t.Fatal(err)
	}

	ctrl := b.NewConnection("ctrl")
	sub := ctrl.Subscribe(topicUptime)
	defer ctrl.Unsubscribe(sub)

	// Shrink the interval to 50ms; several beats should land well inside the
	// default 1s period.
	ctrl.Publish(ctrl.NewMessage(topicConfigHeartbeat, []byte(`{"interval": 0.05}`), true))

	beats := 0
	deadline := time.After(900 * time.Millisecond)
	for beats < 3 {
		select {
		case <-sub.Channel():
			beats++
		case <-deadline:
			t.Fatalf("only %d beats after reconfigure, want >= 3", beats)
		}
	}
}
