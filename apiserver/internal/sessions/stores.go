package sessions

import (
	"context"
	"time"
)

// CacheStore is an interface for the fast, volatile store of refresh tokens,
// keyed by user and session. Entries expire on their own.
type CacheStore interface {
	// Put stores a refresh token, replacing any existing one, and sets it to
	// expire after the given TTL.
	Put(
		ctx context.Context,
		userID string,
		sessionID string,
		token string,
		ttl time.Duration,
	) error
	// Get returns the refresh token for the given session and whether one was
	// found. A miss is not an error.
	Get(ctx context.Context, userID string, sessionID string) (string, bool, error)
	// Delete removes the refresh token for the given session, if any.
	Delete(ctx context.Context, userID string, sessionID string) error
}

// LedgerStore is an interface for the durable, authoritative record of
// sessions.
type LedgerStore interface {
	Upsert(ctx context.Context, session Session) error
	// Rotate replaces the refresh token of an existing session, but only while
	// the token on record is still oldToken. It never creates a session. It
	// fails with a *meta.ErrNotFound error if the session is not recorded and
	// with a *meta.ErrConflict error if its token was already replaced.
	Rotate(ctx context.Context, oldToken string, session Session) error
	FindBySessionID(ctx context.Context, sessionID string) (Session, error)
	FindByUserID(ctx context.Context, userID string) ([]Session, error)
	List(ctx context.Context) ([]Session, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}
