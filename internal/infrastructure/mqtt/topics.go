package mqtt

import "fmt"

// Topic prefixes for the datalog broker surface.
//
// All topics share the flat scheme: karabo/{category}/{instance}/{suffix}.
// Slot requests address a service instance by id; replies go back to the
// caller's own reply subtree keyed by request id.
const (
	// TopicPrefix is the base for all datalog topics.
	TopicPrefix = "karabo"

	// TopicPrefixSlot is the base for slot request topics.
	TopicPrefixSlot = "karabo/slot"

	// TopicPrefixReply is the base for slot reply topics.
	TopicPrefixReply = "karabo/reply"

	// TopicPrefixSignal is the base for broadcast signal topics.
	TopicPrefixSignal = "karabo/signal"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "karabo/system"
)

// Topics provides builders for datalog MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	reqTopic := topics.SlotRequest("DataLogReader-1", "slotGetPropertyHistory")
//	// Returns: "karabo/slot/DataLogReader-1/slotGetPropertyHistory"
type Topics struct{}

// SlotRequest returns the topic a caller publishes to when invoking a slot
// on a service instance.
//
// Example: karabo/slot/DataLogReader-1/slotGetPropertyHistory
func (Topics) SlotRequest(instanceID, slot string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixSlot, instanceID, slot)
}

// SlotReply returns the topic a slot reply is published to. The request id
// scopes the reply to a single outstanding call.
//
// Example: karabo/reply/gui-client-7/9f2c...
func (Topics) SlotReply(clientID, requestID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixReply, clientID, requestID)
}

// Signal returns the topic a service broadcasts a signal on.
//
// Example: karabo/signal/DataLoggerManager/signalLoggerMap
func (Topics) Signal(instanceID, signal string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixSignal, instanceID, signal)
}

// SystemStatus returns the service status topic used for the online/offline
// presence payloads and the Last Will message.
//
// Example: karabo/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllSlotRequests returns a pattern matching every slot request addressed to
// an instance.
//
// Pattern: karabo/slot/DataLogReader-1/+
func (Topics) AllSlotRequests(instanceID string) string {
	return fmt.Sprintf("%s/%s/+", TopicPrefixSlot, instanceID)
}

// AllSlotReplies returns a pattern matching every reply addressed to a
// caller.
//
// Pattern: karabo/reply/gui-client-7/+
func (Topics) AllSlotReplies(clientID string) string {
	return fmt.Sprintf("%s/%s/+", TopicPrefixReply, clientID)
}

// AllSignals returns a pattern matching every signal from an instance.
//
// Pattern: karabo/signal/DataLoggerManager/+
func (Topics) AllSignals(instanceID string) string {
	return fmt.Sprintf("%s/%s/+", TopicPrefixSignal, instanceID)
}

// SignalFromAny returns a pattern matching one signal name across every
// instance. The emitting instance id is the third topic segment.
//
// Pattern: karabo/signal/+/signalChanged
func (Topics) SignalFromAny(signal string) string {
	return fmt.Sprintf("%s/+/%s", TopicPrefixSignal, signal)
}

// AllTopics returns a pattern matching all datalog topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: karabo/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
