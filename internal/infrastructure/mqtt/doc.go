// Package mqtt provides the MQTT transport for the relay bridge.
//
// This package manages:
//   - Connection to the broker with paho's automatic reconnect
//   - A retained availability topic with a matching Last Will
//   - Batched subscription (one SUBSCRIBE for the whole topic set)
//   - Non-blocking publish with asynchronous failure logging
//
// The session is clean, so the broker forgets subscriptions on every
// disconnect. The client does not restore them itself; the on-connect
// callback is the single place where the caller subscribes, on the first
// connection and on every reconnect.
//
// Usage:
//
//	client := mqtt.NewClient(cfg.MQTT, "Relay/status")
//	client.SetOnConnect(func() {
//	    _ = client.SubscribeMany([]string{"Relay/screen"}, 0, handle)
//	})
//	if err := client.Connect(ctx); err != nil {
//	    return err // initial failure is fatal
//	}
//	defer client.Close()
package mqtt
