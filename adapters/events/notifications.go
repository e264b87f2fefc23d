package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

// NotificationRouter turns identity events into emails sent through a Notifier
type NotificationRouter struct {
	router   *message.Router
	notifier ports.Notifier
}

// NewNotificationRouter subscribes to identity topics on subscriber
func NewNotificationRouter(subscriber message.Subscriber, notifier ports.Notifier, logger watermill.LoggerAdapter) (*NotificationRouter, error) {
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	n := &NotificationRouter{router: router, notifier: notifier}
	router.AddNoPublisherHandler("welcome_email", TopicIdentityCreated, subscriber, n.handleCreated)
	router.AddNoPublisherHandler("profile_email", TopicIdentityUpdated, subscriber, n.handleUpdated)

	return n, nil
}

// Run blocks until ctx is done or the router is closed
func (n *NotificationRouter) Run(ctx context.Context) error {
	return n.router.Run(ctx)
}

// Running is closed once every handler is subscribed
func (n *NotificationRouter) Running() chan struct{} {
	return n.router.Running()
}

// Close stops the router and waits for in-flight handlers
func (n *NotificationRouter) Close() error {
	return n.router.Close()
}

func (n *NotificationRouter) handleCreated(msg *message.Message) error {
	event, ok := decodeIdentityEvent(msg)
	if !ok || event.Email == "" {
		return nil
	}

	body := fmt.Sprintf("Hello %s,\n\nYour account for %s has been created.\n", event.DisplayName, event.Address)
	return n.notifier.Send(msg.Context(), event.Email, "Welcome", body)
}

func (n *NotificationRouter) handleUpdated(msg *message.Message) error {
	event, ok := decodeIdentityEvent(msg)
	if !ok || event.Email == "" {
		return nil
	}

	body := fmt.Sprintf("Hello %s,\n\nThe profile for %s was updated.\n", event.DisplayName, core.ShortAddress(event.Address))
	return n.notifier.Send(msg.Context(), event.Email, "Profile updated", body)
}

// decodeIdentityEvent reports false for malformed payloads, which are acked and dropped
func decodeIdentityEvent(msg *message.Message) (IdentityEvent, bool) {
	var event IdentityEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return event, false
	}
	return event, true
}
