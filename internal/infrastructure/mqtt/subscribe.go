package mqtt

import (
	"fmt"
)

// SubscribeMany subscribes every topic in a single SUBSCRIBE packet and
// waits (bounded) for the broker's acknowledgement.
//
// Subscriptions are not tracked or restored by the client: the session is
// clean, so the caller re-subscribes from its on-connect callback.
func (c *Client) SubscribeMany(topics []string, qos byte, handler MessageHandler) error {
	if len(topics) == 0 {
		return fmt.Errorf("%w: no topics", ErrSubscribeFailed)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		if t == "" {
			return fmt.Errorf("%w: empty", ErrInvalidTopic)
		}
		filters[t] = qos
	}

	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := c.client.SubscribeMultiple(filters, c.wrapHandler(handler))
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("%w: %w after %v", ErrSubscribeFailed, ErrTimeout, subscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	if logger := c.getLogger(); logger != nil {
		logger.Debug("MQTT subscribed", "topics", len(filters), "qos", qos)
	}
	return nil
}
