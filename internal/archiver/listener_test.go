package archiver

import (
	"testing"

	"github.com/nerrad567/datalog-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/datalog-core/internal/karabo"
)

type fakeBus struct {
	handlers map[string]mqtt.MessageHandler
}

func (b *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if b.handlers == nil {
		b.handlers = make(map[string]mqtt.MessageHandler)
	}
	b.handlers[topic] = handler
	return nil
}

// deliver invokes the handler registered for the wildcard pattern with a
// concrete topic, the way the broker would.
func (b *fakeBus) deliver(t *testing.T, pattern, topic string, payload string) error {
	t.Helper()
	handler, ok := b.handlers[pattern]
	if !ok {
		t.Fatalf("no subscription for %q", pattern)
	}
	return handler(topic, []byte(payload))
}

func TestListenArchivesValueSignals(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	bus := &fakeBus{}
	if err := Listen(a, bus, 1); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	err := bus.deliver(t, "karabo/signal/+/signalChanged", "karabo/signal/motor1/signalChanged",
		`{"key":"speed","type":"DOUBLE","v":"1.5","tid":42,"sec":10,"frac":0}`)
	if err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	if len(w.points) != 1 {
		t.Fatalf("points written = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.measurement != "motor1" {
		t.Errorf("measurement = %q, want motor1", p.measurement)
	}
	if p.fields["speed-DOUBLE"] != 1.5 {
		t.Errorf("value field = %v, want 1.5", p.fields["speed-DOUBLE"])
	}
	if p.fields["_tid"] != int64(42) {
		t.Errorf("_tid = %v, want 42", p.fields["_tid"])
	}
}

func TestListenPreservesIntegerWidths(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	bus := &fakeBus{}
	if err := Listen(a, bus, 1); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	err := bus.deliver(t, "karabo/signal/+/signalChanged", "karabo/signal/motor1/signalChanged",
		`{"key":"steps","type":"UINT64","v":"9007199254740993","tid":1,"sec":10,"frac":0}`)
	if err != nil {
		t.Fatalf("deliver error = %v", err)
	}
	// 2^53+1 is not representable as a float64; the stringified form must
	// survive the trip intact.
	if got := w.points[0].fields["steps-UINT64"]; got != int64(9007199254740993) {
		t.Errorf("value field = %v (%T), want 9007199254740993", got, got)
	}
}

func TestListenArchivesLifecycleSignals(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	bus := &fakeBus{}
	if err := Listen(a, bus, 1); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	if err := bus.deliver(t, "karabo/signal/+/signalInstanceNew", "karabo/signal/motor1/signalInstanceNew",
		`{"user":"alice","sec":10,"frac":0}`); err != nil {
		t.Fatalf("deliver new error = %v", err)
	}
	if err := bus.deliver(t, "karabo/signal/+/signalInstanceGone", "karabo/signal/motor1/signalInstanceGone",
		`{"sec":20,"frac":0}`); err != nil {
		t.Fatalf("deliver gone error = %v", err)
	}

	if len(w.points) != 2 {
		t.Fatalf("points written = %d, want 2", len(w.points))
	}
	if w.points[0].measurement != "motor1__EVENTS" {
		t.Errorf("measurement = %q, want motor1__EVENTS", w.points[0].measurement)
	}
	if w.points[0].fields["type"] != eventLogin {
		t.Errorf("first event type = %v, want %q", w.points[0].fields["type"], eventLogin)
	}
	if w.points[0].fields["karabo_user"] != "alice" {
		t.Errorf("karabo_user = %v, want alice", w.points[0].fields["karabo_user"])
	}
	if w.points[1].fields["type"] != eventLogout {
		t.Errorf("second event type = %v, want %q", w.points[1].fields["type"], eventLogout)
	}
}

func TestListenArchivesSchemaSignals(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	bus := &fakeBus{}
	if err := Listen(a, bus, 1); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	schema := karabo.NewSchema("Motor", []karabo.Leaf{
		{Path: "speed", Type: karabo.Double},
	})
	blob, err := schema.EncodeBlob()
	if err != nil {
		t.Fatalf("EncodeBlob() error = %v", err)
	}
	digest, err := schema.Digest()
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}

	if err := bus.deliver(t, "karabo/signal/+/signalSchemaUpdated", "karabo/signal/motor1/signalSchemaUpdated",
		`{"schema":"`+blob+`","sec":30,"frac":0}`); err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	if len(w.points) != 2 {
		t.Fatalf("points written = %d, want 2 (blob + event)", len(w.points))
	}
	if w.points[0].measurement != "motor1__SCHEMAS" {
		t.Errorf("measurement = %q, want motor1__SCHEMAS", w.points[0].measurement)
	}
	if w.points[0].fields["digest"] != digest {
		t.Errorf("digest = %v, want %v", w.points[0].fields["digest"], digest)
	}
	if w.points[1].fields["schema_digest"] != digest {
		t.Errorf("event schema_digest = %v, want %v", w.points[1].fields["schema_digest"], digest)
	}
}

func TestListenRejectsMalformedSignals(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	bus := &fakeBus{}
	if err := Listen(a, bus, 1); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	cases := []struct {
		name    string
		topic   string
		payload string
	}{
		{"bad json", "karabo/signal/motor1/signalChanged", `{`},
		{"unknown type", "karabo/signal/motor1/signalChanged", `{"key":"k","type":"NOPE","v":"1"}`},
		{"unparsable value", "karabo/signal/motor1/signalChanged", `{"key":"k","type":"INT32","v":"abc"}`},
		{"short topic", "karabo/signal/signalChanged", `{"key":"k","type":"INT32","v":"1"}`},
	}
	for _, tc := range cases {
		err := bus.deliver(t, "karabo/signal/+/signalChanged", tc.topic, tc.payload)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
	if len(w.points) != 0 {
		t.Errorf("points written = %d, want 0", len(w.points))
	}
}
