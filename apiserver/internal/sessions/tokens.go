package sessions

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/krancour/identity/apiserver/internal/meta"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	// TokenTypeAccess is a short-lived token that proves identity and role for
	// a single request window.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a longer-lived token that can be exchanged for new
	// access tokens without re-authenticating.
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the verified contents of an access or refresh token.
type Claims struct {
	UserID    string
	Role      Role
	SessionID string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// UnverifiedClaims are the contents of a token whose lifetime was not
// checked. They identify a session for recovery purposes only and must never
// be used to authorize a request.
type UnverifiedClaims struct {
	UserID    string
	Role      Role
	SessionID string
	Type      TokenType
}

// IssuedTokens is a freshly minted access and refresh token pair.
type IssuedTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenCodec creates and verifies signed, time-bound tokens carrying a
// user's identity, role, and session.
type TokenCodec interface {
	// Issue mints an access token and a refresh token for the given session.
	Issue(userID string, role Role, sessionID string) (IssuedTokens, error)
	// IssueAccessToken mints an access token only. It returns the token and
	// its expiry.
	IssueAccessToken(
		userID string,
		role Role,
		sessionID string,
	) (string, time.Time, error)
	// Verify checks a token's signature, structure, and expiry. It returns a
	// *meta.ErrExpired error if the token's lifetime has lapsed and a
	// *meta.ErrMalformed error for any other failure. It consults no store.
	Verify(token string) (Claims, error)
	// Decode recovers the claims of a correctly signed token without checking
	// its lifetime. It exists so that an expired access token can still point
	// at the session whose refresh token should be consulted.
	Decode(token string) (UnverifiedClaims, error)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role      Role      `json:"role"`
	SessionID string    `json:"sessionId"`
	Type      TokenType `json:"typ"`
}

type tokenCodec struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenCodec returns an HMAC-SHA256 backed TokenCodec.
func NewTokenCodec(
	signingSecret string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) TokenCodec {
	return &tokenCodec{
		signingKey: []byte(signingSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (t *tokenCodec) Issue(
	userID string,
	role Role,
	sessionID string,
) (IssuedTokens, error) {
	tokens := IssuedTokens{}
	var err error
	if tokens.AccessToken, tokens.AccessExpiresAt, err = t.mint(
		userID,
		role,
		sessionID,
		TokenTypeAccess,
		t.accessTTL,
	); err != nil {
		return tokens, err
	}
	tokens.RefreshToken, tokens.RefreshExpiresAt, err = t.mint(
		userID,
		role,
		sessionID,
		TokenTypeRefresh,
		t.refreshTTL,
	)
	return tokens, err
}

func (t *tokenCodec) IssueAccessToken(
	userID string,
	role Role,
	sessionID string,
) (string, time.Time, error) {
	return t.mint(userID, role, sessionID, TokenTypeAccess, t.accessTTL)
}

func (t *tokenCodec) mint(
	userID string,
	role Role,
	sessionID string,
	tokenType TokenType,
	ttl time.Duration,
) (string, time.Time, error) {
	now := t.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(
		jwt.SigningMethodHS256,
		tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewV4().String(),
				Subject:   userID,
				IssuedAt:  issuedAt,
				ExpiresAt: expiresAt,
			},
			Role:      role,
			SessionID: sessionID,
			Type:      tokenType,
		},
	)
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", time.Time{},
			errors.Wrapf(err, "error signing %s token", tokenType)
	}
	// The embedded expiry is truncated to whole seconds, so report that value.
	return signed, expiresAt.Time, nil
}

func (t *tokenCodec) Verify(token string) (Claims, error) {
	tc := &tokenClaims{}
	if _, err := jwt.ParseWithClaims(
		token,
		tc,
		t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, &meta.ErrExpired{Type: "Token"}
		}
		return Claims{}, &meta.ErrMalformed{Reason: err.Error()}
	}
	if err := tc.validate(); err != nil {
		return Claims{}, err
	}
	return Claims{
		UserID:    tc.Subject,
		Role:      tc.Role,
		SessionID: tc.SessionID,
		Type:      tc.Type,
		IssuedAt:  tc.IssuedAt.Time,
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}

func (t *tokenCodec) Decode(token string) (UnverifiedClaims, error) {
	tc := &tokenClaims{}
	if _, err := jwt.ParseWithClaims(
		token,
		tc,
		t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	); err != nil {
		return UnverifiedClaims{}, &meta.ErrMalformed{Reason: err.Error()}
	}
	if err := tc.validate(); err != nil {
		return UnverifiedClaims{}, err
	}
	return UnverifiedClaims{
		UserID:    tc.Subject,
		Role:      tc.Role,
		SessionID: tc.SessionID,
		Type:      tc.Type,
	}, nil
}

func (t *tokenCodec) keyFunc(*jwt.Token) (interface{}, error) {
	return t.signingKey, nil
}

func (t *tokenClaims) validate() error {
	if t.Subject == "" || t.SessionID == "" {
		return &meta.ErrMalformed{
			Reason: "token does not identify a user and session",
		}
	}
	if t.Type != TokenTypeAccess && t.Type != TokenTypeRefresh {
		return &meta.ErrMalformed{Reason: "token is of an unrecognized type"}
	}
	return nil
}
