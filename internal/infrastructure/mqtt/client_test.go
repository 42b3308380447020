package mqtt

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/datalog-core/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Broker-backed tests require a running Mosquitto at 127.0.0.1:1883 and are
// skipped when none is reachable.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "datalog-test",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "",
			Password: "",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// requireBroker skips the test when no local broker is listening.
func requireBroker(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 500*time.Millisecond)
	if err != nil {
		t.Skipf("no MQTT broker at 127.0.0.1:1883: %v", err)
	}
	conn.Close()
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	c := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Publish / Subscribe Validation (no broker required)
// =============================================================================

func TestPublishEmptyTopic(t *testing.T) {
	c := &Client{}
	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishInvalidQoS(t *testing.T) {
	c := &Client{}
	if err := c.Publish("karabo/test", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish() error = %v, want ErrInvalidQoS", err)
	}
}

func TestPublishDisconnected(t *testing.T) {
	c := &Client{}
	if err := c.Publish("karabo/test", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeEmptyTopic(t *testing.T) {
	c := &Client{}
	err := c.Subscribe("", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	c := &Client{}
	if err := c.Subscribe("karabo/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
}

func TestUnsubscribeEmptyTopic(t *testing.T) {
	c := &Client{}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() error = %v, want ErrInvalidTopic", err)
	}
}

// =============================================================================
// Broker-backed Tests
// =============================================================================

func TestPublishSubscribeRoundtrip(t *testing.T) {
	requireBroker(t)

	pubCfg := testConfig()
	pubCfg.Broker.ClientID = "datalog-test-pub"
	pubClient, err := Connect(pubCfg)
	if err != nil {
		t.Fatalf("Connect(pub) error = %v", err)
	}
	defer pubClient.Close()

	subCfg := testConfig()
	subCfg.Broker.ClientID = "datalog-test-sub"
	subClient, err := Connect(subCfg)
	if err != nil {
		t.Fatalf("Connect(sub) error = %v", err)
	}
	defer subClient.Close()

	topic := "karabo/test/roundtrip"
	received := make(chan []byte, 1)

	err = subClient.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- payload
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	want := []byte(`{"id":"req-1"}`)
	if err := pubClient.Publish(topic, want, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(want) {
			t.Errorf("received %s, want %s", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received within 5s")
	}
}

func TestWildcardSubscription(t *testing.T) {
	requireBroker(t)

	cfg := testConfig()
	cfg.Broker.ClientID = "datalog-test-wild"
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	pattern := Topics{}.AllSlotRequests("reader-x")
	var mu sync.Mutex
	var topics []string

	err = client.Subscribe(pattern, 1, func(topic string, _ []byte) error {
		mu.Lock()
		topics = append(topics, topic)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	published := []string{
		Topics{}.SlotRequest("reader-x", "slotGetPropertyHistory"),
		Topics{}.SlotRequest("reader-x", "slotGetConfigurationFromPast"),
	}
	for _, topic := range published {
		if err := client.PublishString(topic, `{}`, 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(topics)
		mu.Unlock()
		if n >= len(published) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("received %d messages, want %d", n, len(published))
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	requireBroker(t)

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := "karabo/test/tracking"
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe(topic, 1, handler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topic) {
		t.Error("HasSubscription() = false after Subscribe")
	}
	if got := client.SubscriptionCount(); got != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", got)
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topic) {
		t.Error("HasSubscription() = true after Unsubscribe")
	}
}

// =============================================================================
// Topic Builders (pure)
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name: "SlotRequest",
			builder: func() string {
				return Topics{}.SlotRequest("DataLogReader-1", "slotGetPropertyHistory")
			},
			expected: "karabo/slot/DataLogReader-1/slotGetPropertyHistory",
		},
		{
			name: "SlotReply",
			builder: func() string {
				return Topics{}.SlotReply("gui-client-7", "req-123")
			},
			expected: "karabo/reply/gui-client-7/req-123",
		},
		{
			name: "Signal",
			builder: func() string {
				return Topics{}.Signal("DataLoggerManager", "signalLoggerMap")
			},
			expected: "karabo/signal/DataLoggerManager/signalLoggerMap",
		},
		{
			name:     "SystemStatus",
			builder:  func() string { return Topics{}.SystemStatus() },
			expected: "karabo/system/status",
		},
		{
			name: "AllSlotRequests",
			builder: func() string {
				return Topics{}.AllSlotRequests("DataLogReader-1")
			},
			expected: "karabo/slot/DataLogReader-1/+",
		},
		{
			name: "AllSlotReplies",
			builder: func() string {
				return Topics{}.AllSlotReplies("gui-client-7")
			},
			expected: "karabo/reply/gui-client-7/+",
		},
		{
			name: "AllSignals",
			builder: func() string {
				return Topics{}.AllSignals("DataLoggerManager")
			},
			expected: "karabo/signal/DataLoggerManager/+",
		},
		{
			name:     "AllTopics",
			builder:  func() string { return Topics{}.AllTopics() },
			expected: "karabo/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.builder(); got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}
