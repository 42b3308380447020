package manager

import (
	"context"
	"encoding/json"
	"testing"
)

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	retained []bool
}

func (f *fakePublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	f.retained = append(f.retained, retained)
	return nil
}

func TestBroadcastPublishesRetainedMap(t *testing.T) {
	lister := &fakeLister{measurements: []string{"dev1", "dev1__EVENTS", "dev2"}}
	registry := NewRegistry(lister, "karabo", "reader-1")
	pub := &fakePublisher{}
	Broadcast(registry, pub, "manager-1", 1)

	if err := registry.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if len(pub.topics) != 1 {
		t.Fatalf("publishes = %d, want 1", len(pub.topics))
	}
	if pub.topics[0] != "karabo/signal/manager-1/signalLoggerMap" {
		t.Errorf("topic = %q", pub.topics[0])
	}
	if !pub.retained[0] {
		t.Error("broadcast not retained")
	}

	var payload loggerMapPayload
	if err := json.Unmarshal(pub.payloads[0], &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	want := map[string]string{"dev1": "reader-1", "dev2": "reader-1"}
	if len(payload.DeviceToReader) != len(want) {
		t.Fatalf("map size = %d, want %d", len(payload.DeviceToReader), len(want))
	}
	for k, v := range want {
		if payload.DeviceToReader[k] != v {
			t.Errorf("map[%q] = %q, want %q", k, payload.DeviceToReader[k], v)
		}
	}
}
