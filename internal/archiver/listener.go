package archiver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/datalog-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/datalog-core/internal/karabo"
)

// Device signals the archive listener consumes. Devices publish these on
// karabo/signal/<deviceId>/<signal>; the listener subscribes with a
// single-level wildcard in the instance segment and recovers the device
// id from the topic.
const (
	signalChanged       = "signalChanged"
	signalInstanceNew   = "signalInstanceNew"
	signalInstanceGone  = "signalInstanceGone"
	signalSchemaUpdated = "signalSchemaUpdated"
)

// Bus is the subscribe-side slice of the broker client the listener needs.
type Bus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Wire shapes of the device signals. Values travel in their stringified
// store form so integer widths survive JSON; schemas travel as the same
// base64 blob the store keeps.
type (
	valueSignal struct {
		Key   string `json:"key"`
		Type  string `json:"type"`
		Value string `json:"v"`
		Tid   uint64 `json:"tid"`
		Sec   uint64 `json:"sec"`
		Frac  uint64 `json:"frac"`
	}
	instanceSignal struct {
		User string `json:"user"`
		Tid  uint64 `json:"tid"`
		Sec  uint64 `json:"sec"`
		Frac uint64 `json:"frac"`
	}
	schemaSignal struct {
		Schema string `json:"schema"`
		Tid    uint64 `json:"tid"`
		Sec    uint64 `json:"sec"`
		Frac   uint64 `json:"frac"`
	}
)

// Listen subscribes the archiver to the device signal surface. Each
// received signal becomes one or two rows in the store via the Log*
// methods. Malformed payloads are reported back to the broker client,
// which logs and drops them.
func Listen(a *Archiver, bus Bus, qos byte) error {
	topics := mqtt.Topics{}
	subs := map[string]mqtt.MessageHandler{
		topics.SignalFromAny(signalChanged):       a.onValueSignal,
		topics.SignalFromAny(signalInstanceNew):   a.onInstanceNew,
		topics.SignalFromAny(signalInstanceGone):  a.onInstanceGone,
		topics.SignalFromAny(signalSchemaUpdated): a.onSchemaSignal,
	}
	for topic, handler := range subs {
		if err := bus.Subscribe(topic, qos, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (a *Archiver) onValueSignal(topic string, payload []byte) error {
	deviceID, err := deviceFromTopic(topic)
	if err != nil {
		return err
	}
	var sig valueSignal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return fmt.Errorf("decode %s: %w", signalChanged, err)
	}
	t, err := karabo.ParseTypeTag(sig.Type)
	if err != nil {
		return err
	}
	value, err := karabo.Parse(t, sig.Value)
	if err != nil {
		return err
	}
	ts := karabo.Timestamp{Sec: sig.Sec, Frac: sig.Frac, Tid: sig.Tid}
	return a.LogValue(deviceID, sig.Key, t, value, ts)
}

func (a *Archiver) onInstanceNew(topic string, payload []byte) error {
	deviceID, err := deviceFromTopic(topic)
	if err != nil {
		return err
	}
	var sig instanceSignal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return fmt.Errorf("decode %s: %w", signalInstanceNew, err)
	}
	a.LogLogin(deviceID, sig.User, karabo.Timestamp{Sec: sig.Sec, Frac: sig.Frac, Tid: sig.Tid})
	return nil
}

func (a *Archiver) onInstanceGone(topic string, payload []byte) error {
	deviceID, err := deviceFromTopic(topic)
	if err != nil {
		return err
	}
	var sig instanceSignal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return fmt.Errorf("decode %s: %w", signalInstanceGone, err)
	}
	a.LogLogout(deviceID, karabo.Timestamp{Sec: sig.Sec, Frac: sig.Frac, Tid: sig.Tid})
	return nil
}

func (a *Archiver) onSchemaSignal(topic string, payload []byte) error {
	deviceID, err := deviceFromTopic(topic)
	if err != nil {
		return err
	}
	var sig schemaSignal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return fmt.Errorf("decode %s: %w", signalSchemaUpdated, err)
	}
	schema, err := karabo.DecodeSchemaBlob(sig.Schema)
	if err != nil {
		return err
	}
	_, err = a.LogSchema(deviceID, schema, karabo.Timestamp{Sec: sig.Sec, Frac: sig.Frac, Tid: sig.Tid})
	return err
}

// deviceFromTopic extracts the instance segment from
// karabo/signal/<deviceId>/<signal>.
func deviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[2] == "" {
		return "", fmt.Errorf("unexpected signal topic %q", topic)
	}
	return parts[2], nil
}
