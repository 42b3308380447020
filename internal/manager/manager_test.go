package manager

import (
	"context"
	"errors"
	"testing"
)

type fakeLister struct {
	measurements []string
	err          error
}

func (f *fakeLister) ListMeasurements(context.Context, string) ([]string, error) {
	return f.measurements, f.err
}

func TestRefreshBuildsDeviceMap(t *testing.T) {
	lister := &fakeLister{measurements: []string{
		"dev1", "dev1__EVENTS", "dev1__SCHEMAS",
		"dev2", "dev2__EVENTS",
		"other__SCHEMAS",
	}}
	reg := NewRegistry(lister, "karabo", "reader-1")

	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	snapshot := reg.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Snapshot() = %v, want 2 devices", snapshot)
	}
	if id, ok := reg.ReaderFor("dev1"); !ok || id != "reader-1" {
		t.Errorf("ReaderFor(dev1) = %q, %v", id, ok)
	}
	if id, ok := reg.ReaderFor("dev2"); !ok || id != "reader-1" {
		t.Errorf("ReaderFor(dev2) = %q, %v", id, ok)
	}
	if _, ok := reg.ReaderFor("dev1__EVENTS"); ok {
		t.Error("companion measurement treated as a device")
	}
}

func TestRefreshNotifiesSubscribers(t *testing.T) {
	lister := &fakeLister{measurements: []string{"dev1"}}
	reg := NewRegistry(lister, "karabo", "reader-1")

	var got map[string]string
	reg.Subscribe(func(m map[string]string) { got = m })

	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got == nil || got["dev1"] != "reader-1" {
		t.Errorf("subscriber received %v", got)
	}

	// The callback owns its copy; mutating it does not leak back.
	got["dev1"] = "tampered"
	if id, _ := reg.ReaderFor("dev1"); id != "reader-1" {
		t.Errorf("ReaderFor(dev1) = %q after tampering with a snapshot", id)
	}
}

func TestRefreshPropagatesError(t *testing.T) {
	boom := errors.New("store down")
	reg := NewRegistry(&fakeLister{err: boom}, "karabo", "reader-1")
	if err := reg.Refresh(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Refresh() error = %v, want wrapped store error", err)
	}
}
