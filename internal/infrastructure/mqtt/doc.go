// Package mqtt provides MQTT client connectivity for the datalog services.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Request/reply slot calls correlated by request id
//
// # Architecture
//
// The broker is the message bus between the datalog services (reader,
// manager, project store) and their clients. A slot call is a request
// published to the target instance's slot topic carrying a reply topic;
// the instance publishes the reply there, keyed by the request id.
//
//	Client ↔ MQTT Broker ↔ Reader / Manager / Project services
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Serve a slot
//	responder := mqtt.NewResponder(client, "DataLogReader-1", 1)
//	responder.Handle("slotGetPropertyHistory", handleHistory)
//
//	// Call a slot
//	requester := mqtt.NewRequester(client, "gui-client-7", 1)
//	reply, err := requester.Call(ctx, "DataLogReader-1",
//	    "slotGetPropertyHistory", args)
package mqtt
