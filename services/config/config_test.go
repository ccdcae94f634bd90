// config/config_test.go
package config

import (
	"context"
	"testing"
	"time"

	"fuelmon-go/bus"
	"fuelmon-go/types"
)

func TestConfig_PublishEmbedded_RetainedPerKey(t *testing.T) {
	// Override lookup for this test.
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "fuelmon" {
			return nil, false
		}
		return []byte(`{
			"monitor": {"period_ms": 2000, "fuel_threshold_cm": 3},
			"heartbeat": {"interval": 1},
			"cloud": {"broker": "tcp://broker:1883"}
		}`), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	// Arrange bus and service.
	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewConfigService()

	// Start publisher with device ID in context.
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "fuelmon")
	svc.Start(ctx, conn)

	// Subscribe; retained messages should arrive immediately.
	sub := conn.Subscribe(bus.Topic{configPrefix, "#"})

	wantCount := 3 // monitor, heartbeat, cloud
	got := map[string]any{}

	deadline := time.Now().Add(600 * time.Millisecond)
	for len(got) < wantCount && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if m.Topic.Len() < 2 {
				t.Fatalf("unexpected topic length: %#v", m.Topic)
			}
			prefix, ok := m.Topic.At(0).(string)
			if !ok || prefix != configPrefix {
				t.Fatalf("unexpected prefix token: %#v", m.Topic.At(0))
			}
			key, ok := m.Topic.At(1).(string)
			if !ok {
				t.Fatalf("topic[1] type %T, want string", m.Topic.At(1))
			}
			got[key] = m.Payload
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(got) != wantCount {
		t.Fatalf("expected %d retained messages, got %d (%v)", wantCount, len(got), got)
	}

	// Sections decode into their typed configs.
	var mc types.MonitorConfig
	if err := Decode(got["monitor"], &mc); err != nil {
		t.Fatalf("decode monitor section: %v", err)
	}
	if mc.PeriodMs != 2000 || mc.FuelThresholdCm != 3 {
		t.Fatalf("monitor config = %+v", mc)
	}

	var cc types.CloudConfig
	if err := Decode(got["cloud"], &cc); err != nil {
		t.Fatalf("decode cloud section: %v", err)
	}
	if cc.Broker != "tcp://broker:1883" {
		t.Fatalf("cloud config = %+v", cc)
	}

	if _, ok := got["heartbeat"]; !ok {
		t.Fatal("missing 'heartbeat' message")
	}
}

func TestConfig_PublishConfig_MissingDevice(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test-missing-device")
	svc := NewConfigService()

	// No device ID in context
	if err := svc.publishConfig(context.Background(), conn); err == nil {
		t.Fatal("expected error for missing device ID, got nil")
	}
}

func TestConfig_PublishConfig_NoConfigFound(t *testing.T) {
	// Override lookup to simulate absence.
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) { return nil, false }
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(4)
	conn := b.NewConnection("test-no-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "unknown-device")
	if err := svc.publishConfig(ctx, conn); err == nil {
		t.Fatal("expected error for missing embedded config, got nil")
	}
}

func TestDecode_Forms(t *testing.T) {
	want := types.GeoConfig{MinIntervalMs: 500}

	cases := []struct {
		name    string
		payload any
	}{
		{"bytes", []byte(`{"min_interval_ms": 500}`)},
		{"string", `{"min_interval_ms": 500}`},
		{"decoded", map[string]any{"min_interval_ms": 500}},
	}
	for _, c := range cases {
		var got types.GeoConfig
		if err := Decode(c.payload, &got); err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != want {
			t.Fatalf("%s: got %+v, want %+v", c.name, got, want)
		}
	}
}
