package reader

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nerrad567/datalog-core/internal/karabo"
)

func pastSchema(t *testing.T) (*karabo.Schema, string, string) {
	t.Helper()
	schema := karabo.NewSchema("Motor", []karabo.Leaf{
		{Path: "targetSpeed", Type: karabo.Double},
		{Path: "state", Type: karabo.String, DisplayType: "State"},
		{Path: "steps", Type: karabo.Int32},
	})
	blob, err := schema.EncodeBlob()
	if err != nil {
		t.Fatalf("EncodeBlob() error = %v", err)
	}
	digest, err := schema.Digest()
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	return schema, blob, digest
}

func TestConfigurationFromPast(t *testing.T) {
	_, blob, digest := pastSchema(t)

	store := newFakeStore(t,
		// Device logged in at t=7s, never logged out before t=30s.
		fakeRoute{match: "'LOG+'", body: series(`"time","last"`, `[7000000,"alice"]`)},
		fakeRoute{match: "'LOG-'", body: noSeries},
		fakeRoute{match: "'SCHEMA'", body: series(`"time","last_\"schema_digest\""`, fmt.Sprintf(`[5000000,"%s"]`, digest))},
		fakeRoute{match: "__SCHEMAS", body: series(`"time","last_\"schema\""`, fmt.Sprintf(`[5000000,"%s"]`, blob))},
		fakeRoute{match: "targetSpeed-DOUBLE", body: series(`"time","last_\"targetSpeed-DOUBLE\""`, `[28000000,3.5]`)},
		fakeRoute{match: "state-STRING", body: series(`"time","last_\"state-STRING\""`, `[29000000,"\"ON\""]`)},
		fakeRoute{match: "steps-INT32", body: noSeries},
	)
	svc := store.service(t, 10000)

	past, err := svc.GetConfigurationFromPast(context.Background(), "dev3", "1970-01-01T00:00:30.0")
	if err != nil {
		t.Fatalf("GetConfigurationFromPast() error = %v", err)
	}

	if !past.AtTimepoint {
		t.Error("AtTimepoint = false, want true (login after last logout)")
	}
	gotDigest, _ := past.Schema.Digest()
	if gotDigest != digest {
		t.Errorf("schema digest = %s, want %s", gotDigest, digest)
	}

	if v, _ := past.Config.Get("targetSpeed"); v != 3.5 {
		t.Errorf("targetSpeed = %v, want 3.5", v)
	}
	if v, _ := past.Config.Get("state"); v != "ON" {
		t.Errorf("state = %v, want ON", v)
	}
	// A leaf with no data is simply absent.
	if past.Config.Has("steps") {
		t.Error("steps present, want skipped")
	}

	if sec, _ := past.Config.Attr("targetSpeed", "sec"); sec != uint64(28) {
		t.Errorf("targetSpeed sec attr = %v, want 28", sec)
	}
	if tid, _ := past.Config.Attr("state", "tid"); tid != uint64(0) {
		t.Errorf("state tid attr = %v, want 0", tid)
	}

	// ConfigTime reflects the newest entry (state at t=29s).
	if past.ConfigTime != "1970-01-01T00:00:29.000000Z" {
		t.Errorf("ConfigTime = %q, want 1970-01-01T00:00:29.000000Z", past.ConfigTime)
	}
}

func TestConfigurationFromPastDeviceDown(t *testing.T) {
	_, blob, digest := pastSchema(t)

	store := newFakeStore(t,
		fakeRoute{match: "'LOG+'", body: series(`"time","last"`, `[7000000,"alice"]`)},
		fakeRoute{match: "'LOG-'", body: series(`"time","last"`, `[20000000,"alice"]`)},
		fakeRoute{match: "'SCHEMA'", body: series(`"time","last_\"schema_digest\""`, fmt.Sprintf(`[5000000,"%s"]`, digest))},
		fakeRoute{match: "__SCHEMAS", body: series(`"time","last_\"schema\""`, fmt.Sprintf(`[5000000,"%s"]`, blob))},
		fakeRoute{match: "targetSpeed-DOUBLE", body: noSeries},
		fakeRoute{match: "state-STRING", body: noSeries},
		fakeRoute{match: "steps-INT32", body: noSeries},
	)
	svc := store.service(t, 10000)

	past, err := svc.GetConfigurationFromPast(context.Background(), "dev3", "1970-01-01T00:00:30.0")
	if err != nil {
		t.Fatalf("GetConfigurationFromPast() error = %v", err)
	}
	if past.AtTimepoint {
		t.Error("AtTimepoint = true, want false (logout after login)")
	}
	// Every leaf empty: still a success, with an empty config time.
	if past.Config.Len() != 0 {
		t.Errorf("Config.Len() = %d, want 0", past.Config.Len())
	}
	if past.ConfigTime != "" {
		t.Errorf("ConfigTime = %q, want empty", past.ConfigTime)
	}
}

func TestConfigurationFromPastNoSchema(t *testing.T) {
	store := newFakeStore(t,
		fakeRoute{match: "'LOG+'", body: noSeries},
		fakeRoute{match: "'LOG-'", body: noSeries},
		fakeRoute{match: "'SCHEMA'", body: noSeries},
	)
	svc := store.service(t, 10000)

	_, err := svc.GetConfigurationFromPast(context.Background(), "dev9", "1970-01-01T00:00:30.0")
	if !errors.Is(err, ErrNoSchema) {
		t.Errorf("error = %v, want ErrNoSchema", err)
	}
}

func TestConfigurationFromPastBadTimepoint(t *testing.T) {
	store := newFakeStore(t)
	svc := store.service(t, 10000)

	_, err := svc.GetConfigurationFromPast(context.Background(), "dev1", "not-a-time")
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("error = %v, want ErrBadRequest", err)
	}
}
