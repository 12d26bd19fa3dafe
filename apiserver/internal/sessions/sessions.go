package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/krancour/identity/apiserver/internal/lib/crypto"
	"github.com/krancour/identity/apiserver/internal/meta"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// Role is an authorization role. A user's role is snapshotted into a session
// when the session is issued.
type Role string

const (
	RoleCustomer        Role = "customer"
	RoleRestaurant      Role = "restaurant"
	RoleDeliveryPartner Role = "delivery_partner"
	RoleAdmin           Role = "admin"
)

// Roles returns every known Role.
func Roles() []Role {
	return []Role{RoleCustomer, RoleRestaurant, RoleDeliveryPartner, RoleAdmin}
}

// Valid returns true if the Role is one of the known roles.
func (r Role) Valid() bool {
	for _, role := range Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// Session is the durable record of one login. Its refresh token is never
// serialized to API clients.
type Session struct {
	UserID    string     `json:"userID" bson:"userID"`
	SessionID string     `json:"sessionID" bson:"sessionID"`
	Role      Role       `json:"role,omitempty" bson:"role,omitempty"`
	Token     string     `json:"-" bson:"token"`
	ExpiresAt time.Time  `json:"expiresAt" bson:"expiresAt"`
	Created   *time.Time `json:"created,omitempty" bson:"createdAt,omitempty"`
	Updated   *time.Time `json:"updated,omitempty" bson:"updatedAt,omitempty"`
}

// MarshalJSON amends Session instances with type metadata.
func (s Session) MarshalJSON() ([]byte, error) {
	type Alias Session
	return json.Marshal(
		struct {
			meta.TypeMeta `json:",inline"`
			Alias         `json:",inline"`
		}{
			TypeMeta: meta.TypeMeta{
				APIVersion: meta.APIVersion,
				Kind:       "Session",
			},
			Alias: (Alias)(s),
		},
	)
}

// SessionList is an ordered list of Sessions, newest first.
type SessionList struct {
	meta.ListMeta `json:"metadata"`
	Items         []Session `json:"items"`
}

// MarshalJSON amends SessionList instances with type metadata.
func (s SessionList) MarshalJSON() ([]byte, error) {
	type Alias SessionList
	return json.Marshal(
		struct {
			meta.TypeMeta `json:",inline"`
			Alias         `json:",inline"`
		}{
			TypeMeta: meta.TypeMeta{
				APIVersion: meta.APIVersion,
				Kind:       "SessionList",
			},
			Alias: (Alias)(s),
		},
	)
}

// IssuedSession is returned exactly once, when a session is issued. It is
// the only time the session's refresh token is disclosed.
type IssuedSession struct {
	SessionID           string    `json:"sessionID"`
	AccessToken         string    `json:"accessToken"`
	AccessTokenExpires  time.Time `json:"accessTokenExpires"`
	RefreshToken        string    `json:"refreshToken"`
	RefreshTokenExpires time.Time `json:"refreshTokenExpires"`
}

// MarshalJSON amends IssuedSession instances with type metadata.
func (i IssuedSession) MarshalJSON() ([]byte, error) {
	type Alias IssuedSession
	return json.Marshal(
		struct {
			meta.TypeMeta `json:",inline"`
			Alias         `json:",inline"`
		}{
			TypeMeta: meta.TypeMeta{
				APIVersion: meta.APIVersion,
				Kind:       "IssuedSession",
			},
			Alias: (Alias)(i),
		},
	)
}

// AccessToken is the result of refreshing a session. RefreshToken and
// RefreshTokenExpires are only populated when refresh tokens are rotated.
type AccessToken struct {
	SessionID           string     `json:"sessionID"`
	Value               string     `json:"value"`
	Expires             time.Time  `json:"expires"`
	RefreshToken        string     `json:"refreshToken,omitempty"`
	RefreshTokenExpires *time.Time `json:"refreshTokenExpires,omitempty"`
}

// MarshalJSON amends AccessToken instances with type metadata.
func (a AccessToken) MarshalJSON() ([]byte, error) {
	type Alias AccessToken
	return json.Marshal(
		struct {
			meta.TypeMeta `json:",inline"`
			Alias         `json:",inline"`
		}{
			TypeMeta: meta.TypeMeta{
				APIVersion: meta.APIVersion,
				Kind:       "AccessToken",
			},
			Alias: (Alias)(a),
		},
	)
}

// SessionsService is the specialized interface for managing the lifecycle of
// login sessions and the tokens bound to them.
type SessionsService interface {
	// Issue starts a new session for the specified user and role and returns
	// its access and refresh tokens.
	Issue(ctx context.Context, userID string, role Role) (IssuedSession, error)
	// Refresh issues a new access token for an existing session. The session's
	// refresh token is read from the cache, falling back to the ledger, and
	// must still be valid and bound to the specified user and session. If role
	// is non-empty, it must match the role bound into the refresh token.
	Refresh(
		ctx context.Context,
		userID string,
		role Role,
		sessionID string,
	) (AccessToken, error)
	// Exchange issues a new access token in exchange for a refresh token. The
	// presented token must be identical to the one currently on record for its
	// session.
	Exchange(ctx context.Context, refreshToken string) (AccessToken, error)
	// Logout ends a single session. It fails with a *meta.ErrNotFound error if
	// no active session is cached, so it is not idempotent.
	Logout(ctx context.Context, userID string, sessionID string) error
	// LogoutAll ends every session for the specified user and returns the
	// number of sessions ended.
	LogoutAll(ctx context.Context, userID string) (int64, error)
	// ListForUser returns every recorded session for the specified user,
	// newest first.
	ListForUser(ctx context.Context, userID string) (SessionList, error)
	// List returns every recorded session, newest first.
	List(ctx context.Context) (SessionList, error)
	// Get returns a single recorded session.
	Get(ctx context.Context, sessionID string) (Session, error)
	// Revoke ends a single session on behalf of someone other than the
	// session's holder, e.g. an administrator or the same user on another
	// device.
	Revoke(ctx context.Context, sessionID string) error
}

type sessionsService struct {
	codec               TokenCodec
	cache               CacheStore
	ledger              LedgerStore
	publisher           EventPublisher
	rotateRefreshTokens bool
	now                 func() time.Time
	newSessionID        func() string
}

// NewSessionsService returns a specialized interface for managing sessions.
func NewSessionsService(
	codec TokenCodec,
	cache CacheStore,
	ledger LedgerStore,
	publisher EventPublisher,
	rotateRefreshTokens bool,
) SessionsService {
	return &sessionsService{
		codec:               codec,
		cache:               cache,
		ledger:              ledger,
		publisher:           publisher,
		rotateRefreshTokens: rotateRefreshTokens,
		now:                 time.Now,
		newSessionID: func() string {
			return uuid.NewV4().String()
		},
	}
}

func (s *sessionsService) Issue(
	ctx context.Context,
	userID string,
	role Role,
) (IssuedSession, error) {
	issued := IssuedSession{}
	if userID == "" {
		return issued, &meta.ErrBadRequest{Reason: "A user ID is required."}
	}
	if !role.Valid() {
		return issued, &meta.ErrBadRequest{
			Reason:  fmt.Sprintf("Unrecognized role %q.", role),
			Details: []string{fmt.Sprintf("Supported roles are %v.", Roles())},
		}
	}
	sessionID := s.newSessionID()
	tokens, err := s.codec.Issue(userID, role, sessionID)
	if err != nil {
		return issued, errors.Wrapf(
			err,
			"error minting tokens for new session %q",
			sessionID,
		)
	}
	if err = s.record(
		ctx,
		Session{
			UserID:    userID,
			SessionID: sessionID,
			Role:      role,
			Token:     tokens.RefreshToken,
			ExpiresAt: tokens.RefreshExpiresAt,
		},
	); err != nil {
		return issued, err
	}
	sessionsIssuedTotal.Inc()
	return IssuedSession{
		SessionID:           sessionID,
		AccessToken:         tokens.AccessToken,
		AccessTokenExpires:  tokens.AccessExpiresAt,
		RefreshToken:        tokens.RefreshToken,
		RefreshTokenExpires: tokens.RefreshExpiresAt,
	}, nil
}

func (s *sessionsService) Refresh(
	ctx context.Context,
	userID string,
	role Role,
	sessionID string,
) (AccessToken, error) {
	if userID == "" || sessionID == "" {
		return AccessToken{}, &meta.ErrBadRequest{
			Reason: "A user ID and session ID are required.",
		}
	}
	refreshToken, err := s.lookupRefreshToken(ctx, userID, sessionID)
	if err != nil {
		return AccessToken{}, err
	}
	claims, err := s.verifyRefreshToken(refreshToken, userID, sessionID)
	if err != nil {
		return AccessToken{}, err
	}
	if role != "" && role != claims.Role {
		return AccessToken{}, &meta.ErrMalformed{
			Reason: fmt.Sprintf(
				"session %q was not issued for role %q",
				sessionID,
				role,
			),
		}
	}
	return s.renew(ctx, claims, refreshToken)
}

func (s *sessionsService) Exchange(
	ctx context.Context,
	presentedToken string,
) (AccessToken, error) {
	if presentedToken == "" {
		return AccessToken{}, &meta.ErrBadRequest{
			Reason: "A refresh token is required.",
		}
	}
	presented, err := s.codec.Verify(presentedToken)
	if err != nil {
		return AccessToken{}, err
	}
	if presented.Type != TokenTypeRefresh {
		return AccessToken{}, &meta.ErrMalformed{
			Reason: "presented token is not a refresh token",
		}
	}
	refreshToken, err :=
		s.lookupRefreshToken(ctx, presented.UserID, presented.SessionID)
	if err != nil {
		return AccessToken{}, err
	}
	if !crypto.Equal(refreshToken, presentedToken) {
		return AccessToken{}, superseded(presented.SessionID)
	}
	claims, err := s.verifyRefreshToken(
		refreshToken,
		presented.UserID,
		presented.SessionID,
	)
	if err != nil {
		return AccessToken{}, err
	}
	return s.renew(ctx, claims, refreshToken)
}

func (s *sessionsService) Logout(
	ctx context.Context,
	userID string,
	sessionID string,
) error {
	if userID == "" || sessionID == "" {
		return &meta.ErrBadRequest{
			Reason: "A user ID and session ID are required.",
		}
	}
	_, found, err := s.cache.Get(ctx, userID, sessionID)
	if err != nil {
		return errors.Wrapf(
			err,
			"error reading refresh token for session %q from cache",
			sessionID,
		)
	}
	if !found {
		return &meta.ErrNotFound{Type: "ActiveSession", ID: sessionID}
	}
	// The ledger goes first. If the cache delete then fails, the session is
	// still cached and the logout can simply be retried.
	if err = s.ledger.DeleteBySessionID(ctx, sessionID); err != nil {
		if _, ok := errors.Cause(err).(*meta.ErrNotFound); !ok {
			return errors.Wrapf(
				err,
				"error deleting session %q from ledger",
				sessionID,
			)
		}
		glog.Warningf(
			"session %q was cached but had no ledger record",
			sessionID,
		)
	}
	if err = s.cache.Delete(ctx, userID, sessionID); err != nil {
		return errors.Wrapf(
			err,
			"error deleting refresh token for session %q from cache",
			sessionID,
		)
	}
	sessionsRevokedTotal.Inc()
	s.publish(ctx, NewTokenRevokedEvent(userID, sessionID))
	return nil
}

func (s *sessionsService) LogoutAll(
	ctx context.Context,
	userID string,
) (int64, error) {
	if userID == "" {
		return 0, &meta.ErrBadRequest{Reason: "A user ID is required."}
	}
	sessions, err := s.ledger.FindByUserID(ctx, userID)
	if err != nil {
		return 0, errors.Wrapf(
			err,
			"error retrieving sessions for user %q from ledger",
			userID,
		)
	}
	if len(sessions) == 0 {
		return 0, &meta.ErrNotFound{Type: "UserSessions", ID: userID}
	}
	count, err := s.ledger.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, errors.Wrapf(
			err,
			"error deleting sessions for user %q from ledger",
			userID,
		)
	}
	var cacheErr error
	for _, session := range sessions {
		if err = s.cache.Delete(ctx, userID, session.SessionID); err != nil {
			if cacheErr == nil {
				cacheErr = errors.Wrapf(
					err,
					"error deleting refresh token for session %q from cache",
					session.SessionID,
				)
			}
		}
		sessionsRevokedTotal.Inc()
		s.publish(ctx, NewTokenRevokedEvent(userID, session.SessionID))
	}
	return count, cacheErr
}

func (s *sessionsService) ListForUser(
	ctx context.Context,
	userID string,
) (SessionList, error) {
	sessions, err := s.ledger.FindByUserID(ctx, userID)
	if err != nil {
		return SessionList{}, errors.Wrapf(
			err,
			"error retrieving sessions for user %q from ledger",
			userID,
		)
	}
	return newSessionList(sessions), nil
}

func (s *sessionsService) List(ctx context.Context) (SessionList, error) {
	sessions, err := s.ledger.List(ctx)
	if err != nil {
		return SessionList{}, errors.Wrap(
			err,
			"error retrieving sessions from ledger",
		)
	}
	return newSessionList(sessions), nil
}

func (s *sessionsService) Get(
	ctx context.Context,
	sessionID string,
) (Session, error) {
	session, err := s.ledger.FindBySessionID(ctx, sessionID)
	if err != nil {
		if _, ok := errors.Cause(err).(*meta.ErrNotFound); ok {
			return session, &meta.ErrNotFound{Type: "Session", ID: sessionID}
		}
		return session, errors.Wrapf(
			err,
			"error reading session %q from ledger",
			sessionID,
		)
	}
	return session, nil
}

func (s *sessionsService) Revoke(ctx context.Context, sessionID string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	// As with Logout, the ledger goes first.
	if err = s.ledger.DeleteBySessionID(ctx, sessionID); err != nil {
		if _, ok := errors.Cause(err).(*meta.ErrNotFound); ok {
			return &meta.ErrNotFound{Type: "Session", ID: sessionID}
		}
		return errors.Wrapf(
			err,
			"error deleting session %q from ledger",
			sessionID,
		)
	}
	if err = s.cache.Delete(ctx, session.UserID, sessionID); err != nil {
		return errors.Wrapf(
			err,
			"error deleting refresh token for session %q from cache",
			sessionID,
		)
	}
	sessionsRevokedTotal.Inc()
	s.publish(ctx, NewTokenRevokedEvent(session.UserID, sessionID))
	return nil
}

// lookupRefreshToken reads a session's refresh token from the cache and,
// on a miss, from the ledger. A ledger hit is written back to the cache and
// re-announced so that every instance's cache heals.
func (s *sessionsService) lookupRefreshToken(
	ctx context.Context,
	userID string,
	sessionID string,
) (string, error) {
	// A cache failure is not treated as a miss. The cache may hold a newer
	// token than the ledger.
	token, found, err := s.cache.Get(ctx, userID, sessionID)
	if err != nil {
		return "", errors.Wrapf(
			err,
			"error reading refresh token for session %q from cache",
			sessionID,
		)
	}
	if found {
		refreshesTotal.WithLabelValues(refreshSourceCache).Inc()
		return token, nil
	}
	session, err := s.ledger.FindBySessionID(ctx, sessionID)
	if err != nil {
		if _, ok := errors.Cause(err).(*meta.ErrNotFound); ok {
			return "", &meta.ErrNotFound{Type: "Session", ID: sessionID}
		}
		return "", errors.Wrapf(
			err,
			"error reading session %q from ledger",
			sessionID,
		)
	}
	if session.UserID != userID {
		return "", &meta.ErrNotFound{Type: "Session", ID: sessionID}
	}
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return "", &meta.ErrExpired{Type: "Session", ID: sessionID}
	}
	refreshesTotal.WithLabelValues(refreshSourceLedger).Inc()
	if err = s.cache.Put(
		ctx,
		userID,
		sessionID,
		session.Token,
		ttl,
	); err != nil {
		glog.Warningf(
			"error restoring refresh token for session %q to cache: %s",
			sessionID,
			err,
		)
		return session.Token, nil
	}
	if session, err = s.confirmRecorded(ctx, session); err != nil {
		return "", err
	}
	s.publish(ctx, NewTokenUpdatedEvent(session))
	return session.Token, nil
}

// confirmRecorded is called right after a session's refresh token was written
// to the cache. Logout and Revoke delete the ledger row before the cache
// entry, so if the row is gone now, a concurrent logout may already have
// cleared the cache and the entry just written must be withdrawn. If the
// ledger holds a different token, the cache is corrected to match it. The
// session as recorded is returned.
func (s *sessionsService) confirmRecorded(
	ctx context.Context,
	cached Session,
) (Session, error) {
	recorded, err := s.ledger.FindBySessionID(ctx, cached.SessionID)
	if err == nil && recorded.UserID != cached.UserID {
		err = &meta.ErrNotFound{Type: "Session", ID: cached.SessionID}
	}
	if err != nil {
		if _, ok := errors.Cause(err).(*meta.ErrNotFound); !ok {
			glog.Warningf(
				"error confirming session %q is still recorded: %s",
				cached.SessionID,
				err,
			)
			return cached, nil
		}
		if err = s.cache.Delete(
			ctx,
			cached.UserID,
			cached.SessionID,
		); err != nil {
			return cached, errors.Wrapf(
				err,
				"error withdrawing refresh token for ended session %q from cache",
				cached.SessionID,
			)
		}
		return cached, &meta.ErrNotFound{Type: "Session", ID: cached.SessionID}
	}
	if recorded.Token != cached.Token {
		if err = s.cache.Put(
			ctx,
			recorded.UserID,
			recorded.SessionID,
			recorded.Token,
			recorded.ExpiresAt.Sub(s.now()),
		); err != nil {
			glog.Warningf(
				"error correcting cached refresh token for session %q: %s",
				recorded.SessionID,
				err,
			)
		}
	}
	return recorded, nil
}

func (s *sessionsService) verifyRefreshToken(
	refreshToken string,
	userID string,
	sessionID string,
) (Claims, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		if _, ok := errors.Cause(err).(*meta.ErrExpired); ok {
			return claims, &meta.ErrExpired{Type: "Session", ID: sessionID}
		}
		return claims, err
	}
	if claims.Type != TokenTypeRefresh {
		return claims, &meta.ErrMalformed{
			Reason: fmt.Sprintf(
				"token on record for session %q is not a refresh token",
				sessionID,
			),
		}
	}
	if claims.UserID != userID || claims.SessionID != sessionID {
		return claims, &meta.ErrMalformed{
			Reason: fmt.Sprintf(
				"refresh token is not bound to session %q",
				sessionID,
			),
		}
	}
	return claims, nil
}

// renew issues a new access token for a session whose refresh token has
// already been verified, rotating the refresh token if so configured.
// Rotation swaps the token in the ledger only while currentToken is still the
// one on record, so it can neither revive an ended session nor silently undo
// a concurrent rotation.
func (s *sessionsService) renew(
	ctx context.Context,
	claims Claims,
	currentToken string,
) (AccessToken, error) {
	if !s.rotateRefreshTokens {
		value, expires, err := s.codec.IssueAccessToken(
			claims.UserID,
			claims.Role,
			claims.SessionID,
		)
		if err != nil {
			return AccessToken{}, errors.Wrapf(
				err,
				"error minting access token for session %q",
				claims.SessionID,
			)
		}
		return AccessToken{
			SessionID: claims.SessionID,
			Value:     value,
			Expires:   expires,
		}, nil
	}
	tokens, err := s.codec.Issue(claims.UserID, claims.Role, claims.SessionID)
	if err != nil {
		return AccessToken{}, errors.Wrapf(
			err,
			"error minting tokens for session %q",
			claims.SessionID,
		)
	}
	session := Session{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Role:      claims.Role,
		Token:     tokens.RefreshToken,
		ExpiresAt: tokens.RefreshExpiresAt,
	}
	if err = s.ledger.Rotate(ctx, currentToken, session); err != nil {
		switch errors.Cause(err).(type) {
		case *meta.ErrNotFound:
			return AccessToken{}, &meta.ErrNotFound{
				Type: "Session",
				ID:   claims.SessionID,
			}
		case *meta.ErrConflict:
			return AccessToken{}, superseded(claims.SessionID)
		}
		return AccessToken{}, errors.Wrapf(
			err,
			"error rotating refresh token for session %q in ledger",
			claims.SessionID,
		)
	}
	if err = s.cache.Put(
		ctx,
		session.UserID,
		session.SessionID,
		session.Token,
		session.ExpiresAt.Sub(s.now()),
	); err != nil {
		// The superseded token must not stay cached, or the next lookup would
		// find a token the ledger no longer accepts.
		if derr := s.cache.Delete(
			ctx,
			session.UserID,
			session.SessionID,
		); derr != nil {
			glog.Warningf(
				"error withdrawing superseded refresh token for session %q: %s",
				session.SessionID,
				derr,
			)
		}
		return AccessToken{}, errors.Wrapf(
			err,
			"error caching rotated refresh token for session %q",
			session.SessionID,
		)
	}
	recorded, err := s.confirmRecorded(ctx, session)
	if err != nil {
		return AccessToken{}, err
	}
	if recorded.Token != session.Token {
		return AccessToken{}, superseded(claims.SessionID)
	}
	s.publish(ctx, NewTokenUpdatedEvent(session))
	return AccessToken{
		SessionID:           claims.SessionID,
		Value:               tokens.AccessToken,
		Expires:             tokens.AccessExpiresAt,
		RefreshToken:        tokens.RefreshToken,
		RefreshTokenExpires: &tokens.RefreshExpiresAt,
	}, nil
}

func superseded(sessionID string) error {
	return &meta.ErrMalformed{
		Reason: fmt.Sprintf(
			"refresh token for session %q has been superseded",
			sessionID,
		),
	}
}

// record writes a session's refresh token to the cache and the ledger and
// announces it. If the ledger write fails, the cache entry is withdrawn so
// that no token outlives its durable record.
func (s *sessionsService) record(ctx context.Context, session Session) error {
	if err := s.cache.Put(
		ctx,
		session.UserID,
		session.SessionID,
		session.Token,
		session.ExpiresAt.Sub(s.now()),
	); err != nil {
		return errors.Wrapf(
			err,
			"error caching refresh token for session %q",
			session.SessionID,
		)
	}
	if err := s.ledger.Upsert(ctx, session); err != nil {
		if derr := s.cache.Delete(
			ctx,
			session.UserID,
			session.SessionID,
		); derr != nil {
			glog.Warningf(
				"error withdrawing cached refresh token for unrecorded session "+
					"%q: %s",
				session.SessionID,
				derr,
			)
		}
		return errors.Wrapf(
			err,
			"error recording session %q in ledger",
			session.SessionID,
		)
	}
	s.publish(ctx, NewTokenUpdatedEvent(session))
	return nil
}

// publish broadcasts an event. Failures are logged and never fail the
// operation that caused the event.
func (s *sessionsService) publish(ctx context.Context, event TokenEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		eventPublishFailuresTotal.WithLabelValues(string(event.Kind)).Inc()
		glog.Warningf(
			"error publishing %s event for session %q: %s",
			event.Kind,
			event.Data.SessionID,
			err,
		)
		return
	}
	eventsPublishedTotal.WithLabelValues(string(event.Kind)).Inc()
}

func newSessionList(sessions []Session) SessionList {
	if sessions == nil {
		sessions = []Session{}
	}
	return SessionList{
		ListMeta: meta.ListMeta{Count: len(sessions)},
		Items:    sessions,
	}
}
