package ports

import (
	"context"

	"github.com/layer-3/signon/core"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogin(ctx context.Context, session *core.Session, isNewUser bool) error
	PublishLogout(ctx context.Context, address string, tokenID string) error
	PublishIdentityCreated(ctx context.Context, identity *core.Identity) error
	PublishIdentityUpdated(ctx context.Context, identity *core.Identity) error
}

// Notifier delivers out-of-band messages such as welcome emails
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}
