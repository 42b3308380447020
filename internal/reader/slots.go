package reader

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/datalog-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/datalog-core/internal/karabo"
)

// SlotRegistrar is the slice of the broker responder slots are bound to.
type SlotRegistrar interface {
	Handle(slot string, fn mqtt.Handler) error
}

// Slot argument and reply shapes. Each sample crosses the wire as its
// value plus the timestamp attributes, so clients can rebuild the
// native timestamp without a second lookup.
type (
	historyArgs struct {
		DeviceID string    `json:"deviceId"`
		Key      string    `json:"key"`
		Times    TimeRange `json:"times"`
	}
	sampleWire struct {
		V    any    `json:"v"`
		Tid  uint64 `json:"tid"`
		Sec  uint64 `json:"sec"`
		Frac uint64 `json:"frac"`
	}
	historyReply struct {
		DeviceID string       `json:"deviceId"`
		Key      string       `json:"key"`
		Samples  []sampleWire `json:"samples"`
	}
	configPastArgs struct {
		DeviceID  string `json:"deviceId"`
		Timepoint string `json:"timepoint"`
	}
	configPastReply struct {
		Config            *karabo.Hash `json:"config"`
		Schema            string       `json:"schema"`
		ConfigAtTimepoint bool         `json:"configAtTimepoint"`
		ConfigTimeString  string       `json:"configTimeString"`
	}
)

// RegisterSlots binds the reader's slot surface onto a responder.
func RegisterSlots(reg SlotRegistrar, svc *Service) error {
	slots := map[string]mqtt.Handler{
		"slotGetPropertyHistory": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args historyArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			samples, err := svc.GetPropertyHistory(ctx, args.DeviceID, args.Key, args.Times)
			if err != nil {
				return nil, err
			}
			wire := make([]sampleWire, len(samples))
			for i, s := range samples {
				wire[i] = sampleWire{
					V:    s.Value,
					Tid:  s.Time.Tid,
					Sec:  s.Time.Sec,
					Frac: s.Time.Frac,
				}
			}
			return historyReply{DeviceID: args.DeviceID, Key: args.Key, Samples: wire}, nil
		},
		"slotGetConfigurationFromPast": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args configPastArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			pc, err := svc.GetConfigurationFromPast(ctx, args.DeviceID, args.Timepoint)
			if err != nil {
				return nil, err
			}
			schemaXML, err := pc.Schema.MarshalXML()
			if err != nil {
				return nil, fmt.Errorf("encode schema: %w", err)
			}
			return configPastReply{
				Config:            pc.Config,
				Schema:            string(schemaXML),
				ConfigAtTimepoint: pc.AtTimepoint,
				ConfigTimeString:  pc.ConfigTime,
			}, nil
		},
	}
	for slot, fn := range slots {
		if err := reg.Handle(slot, fn); err != nil {
			return err
		}
	}
	return nil
}
