package manager

import (
	"encoding/json"

	"github.com/nerrad567/datalog-core/internal/infrastructure/mqtt"
)

// signalLoggerMap is the signal name carrying the device map broadcast.
const signalLoggerMap = "signalLoggerMap"

// Publisher is the slice of the broker client broadcasts go out on.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// loggerMapPayload is the broadcast wire shape. DeviceToReader maps a
// logged device id to the reader instance answering for it.
type loggerMapPayload struct {
	DeviceToReader map[string]string `json:"deviceToReader"`
}

// Broadcast wires the registry's refresh notifications onto the broker:
// after each refresh the latest map goes out retained on the manager's
// signal topic, so late subscribers see the current map immediately.
func Broadcast(r *Registry, pub Publisher, instanceID string, qos byte) {
	topic := mqtt.Topics{}.Signal(instanceID, signalLoggerMap)
	r.Subscribe(func(devices map[string]string) {
		payload, err := json.Marshal(loggerMapPayload{DeviceToReader: devices})
		if err != nil {
			r.logger.Warn("encoding logger map broadcast", "error", err)
			return
		}
		if err := pub.Publish(topic, payload, qos, true); err != nil {
			r.logger.Warn("publishing logger map broadcast", "error", err)
		}
	})
}
