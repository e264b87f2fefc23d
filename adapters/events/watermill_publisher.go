package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
)

// Topics the service publishes to
const (
	TopicLogin           = "signon.auth.login"
	TopicLogout          = "signon.auth.logout"
	TopicIdentityCreated = "signon.identity.created"
	TopicIdentityUpdated = "signon.identity.updated"
)

// LoginEvent represents a successful login
type LoginEvent struct {
	Address   string    `json:"address"`
	TokenID   string    `json:"token_id"`
	ChainID   *uint64   `json:"chain_id,omitempty"`
	IsNewUser bool      `json:"is_new_user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LogoutEvent represents a logout event
type LogoutEvent struct {
	Address string `json:"address"`
	TokenID string `json:"token_id"`
}

// IdentityEvent carries an identity snapshot after it was created or changed
type IdentityEvent struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, session *core.Session, isNewUser bool) error {
	return p.publish(ctx, TopicLogin, LoginEvent{
		Address:   session.Address,
		TokenID:   session.ID,
		ChainID:   session.ChainID,
		IsNewUser: isNewUser,
		ExpiresAt: session.ExpiresAt,
	})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string, tokenID string) error {
	return p.publish(ctx, TopicLogout, LogoutEvent{
		Address: address,
		TokenID: tokenID,
	})
}

// PublishIdentityCreated publishes the first snapshot of a new identity
func (p *WatermillPublisher) PublishIdentityCreated(ctx context.Context, identity *core.Identity) error {
	return p.publish(ctx, TopicIdentityCreated, newIdentityEvent(identity))
}

// PublishIdentityUpdated publishes the identity after a profile change
func (p *WatermillPublisher) PublishIdentityUpdated(ctx context.Context, identity *core.Identity) error {
	return p.publish(ctx, TopicIdentityUpdated, newIdentityEvent(identity))
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("topic", topic)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func newIdentityEvent(identity *core.Identity) IdentityEvent {
	return IdentityEvent{
		ID:          identity.ID,
		Address:     identity.Address,
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		UpdatedAt:   identity.UpdatedAt,
	}
}
