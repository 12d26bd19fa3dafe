package sessions

import (
	"context"
	"time"
)

// EventKind identifies the kind of change a TokenEvent announces.
type EventKind string

const (
	// EventTokenUpdated announces that a session's refresh token was stored
	// or replaced.
	EventTokenUpdated EventKind = "TOKEN_UPDATED"
	// EventTokenRevoked announces that a session was ended.
	EventTokenRevoked EventKind = "TOKEN_REVOKED"
)

// TokenEvent is broadcast to every API server instance whenever a session's
// refresh token changes.
type TokenEvent struct {
	Kind EventKind      `json:"event"`
	Data TokenEventData `json:"data"`
}

// TokenEventData is the payload of a TokenEvent. Token and ExpiresAt are
// omitted from revocations.
type TokenEventData struct {
	UserID    string     `json:"userId"`
	SessionID string     `json:"sessionId"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// NewTokenUpdatedEvent returns a TokenEvent announcing the session's current
// refresh token.
func NewTokenUpdatedEvent(session Session) TokenEvent {
	expiresAt := session.ExpiresAt
	return TokenEvent{
		Kind: EventTokenUpdated,
		Data: TokenEventData{
			UserID:    session.UserID,
			SessionID: session.SessionID,
			Token:     session.Token,
			ExpiresAt: &expiresAt,
		},
	}
}

// NewTokenRevokedEvent returns a TokenEvent announcing that a session ended.
func NewTokenRevokedEvent(userID, sessionID string) TokenEvent {
	return TokenEvent{
		Kind: EventTokenRevoked,
		Data: TokenEventData{
			UserID:    userID,
			SessionID: sessionID,
		},
	}
}

// EventPublisher is an interface for components that broadcast TokenEvents.
type EventPublisher interface {
	Publish(ctx context.Context, event TokenEvent) error
}

// EventHandlerFn is the signature for functions that process TokenEvents.
type EventHandlerFn func(ctx context.Context, event TokenEvent) error

// EventSubscriber is an interface for components that receive TokenEvents.
type EventSubscriber interface {
	// Subscribe delivers every received TokenEvent to the handler. It blocks
	// until the context is canceled or the subscription fails and always
	// returns a non-nil error.
	Subscribe(ctx context.Context, handler EventHandlerFn) error
}
