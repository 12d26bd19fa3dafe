package authn

import (
	"net/http"
	"strings"

	"github.com/golang/glog"
	"github.com/krancour/identity/apiserver/internal/lib/restmachinery"
	"github.com/krancour/identity/apiserver/internal/meta"
	"github.com/krancour/identity/apiserver/internal/sessions"
	"github.com/pkg/errors"
)

// VerifyTokenFn is the signature for functions that verify a token and return
// its claims.
type VerifyTokenFn func(token string) (sessions.Claims, error)

// DecodeTokenFn is the signature for functions that recover the claims of a
// correctly signed token without checking its lifetime.
type DecodeTokenFn func(token string) (sessions.UnverifiedClaims, error)

type tokenAuthFilter struct {
	verifyToken VerifyTokenFn
	decodeToken DecodeTokenFn
}

// NewTokenAuthFilter returns a restmachinery.Filter that admits requests
// bearing a valid, unexpired access token.
func NewTokenAuthFilter(verifyToken VerifyTokenFn) restmachinery.Filter {
	return &tokenAuthFilter{
		verifyToken: verifyToken,
	}
}

// NewExpiredTokenAuthFilter returns a restmachinery.Filter that, in addition
// to everything admitted by the filter returned from NewTokenAuthFilter, also
// admits requests bearing a correctly signed access token that has expired.
// It must only be applied to the endpoint that refreshes a session, since
// that endpoint independently verifies the session's refresh token.
func NewExpiredTokenAuthFilter(
	verifyToken VerifyTokenFn,
	decodeToken DecodeTokenFn,
) restmachinery.Filter {
	return &tokenAuthFilter{
		verifyToken: verifyToken,
		decodeToken: decodeToken,
	}
}

func (t *tokenAuthFilter) Decorate(handle http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(w, r)
		if !ok {
			return
		}

		principal, err := t.authenticate(token)
		if err != nil {
			restmachinery.WriteAPIError(w, err)
			return
		}

		// Success! Add the principal to the context.
		ctx := ContextWithPrincipal(r.Context(), principal)
		handle(w, r.WithContext(ctx))
	}
}

func (t *tokenAuthFilter) authenticate(token string) (*Principal, error) {
	claims, err := t.verifyToken(token)
	if err == nil {
		if claims.Type != sessions.TokenTypeAccess {
			return nil, &meta.ErrMalformed{
				Reason: "Only access tokens may be used to authenticate requests.",
			}
		}
		return &Principal{
			UserID:    claims.UserID,
			Role:      claims.Role,
			SessionID: claims.SessionID,
		}, nil
	}
	switch errors.Cause(err).(type) {
	case *meta.ErrExpired:
		if t.decodeToken == nil {
			return nil, err
		}
	case *meta.ErrMalformed:
		return nil, err
	default:
		glog.Error(errors.Wrap(err, "error verifying access token"))
		return nil, &meta.ErrInternalServer{}
	}
	unverified, err := t.decodeToken(token)
	if err != nil {
		return nil, err
	}
	if unverified.Type != sessions.TokenTypeAccess {
		return nil, &meta.ErrMalformed{
			Reason: "Only access tokens may be used to authenticate requests.",
		}
	}
	return &Principal{
		UserID:    unverified.UserID,
		Role:      unverified.Role,
		SessionID: unverified.SessionID,
	}, nil
}

// bearerToken extracts a bearer token from the request's Authorization header.
// If there is none, it writes an error response and returns false.
func bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	headerValue := r.Header.Get("Authorization")
	if headerValue == "" {
		restmachinery.WriteAPIResponse(
			w,
			http.StatusUnauthorized,
			&meta.ErrAuthentication{
				Reason: `"Authorization" header is missing.`,
			},
		)
		return "", false
	}
	headerValueParts := strings.SplitN(headerValue, " ", 2)
	if len(headerValueParts) != 2 || headerValueParts[0] != "Bearer" {
		restmachinery.WriteAPIResponse(
			w,
			http.StatusUnauthorized,
			&meta.ErrAuthentication{
				Reason: `"Authorization" header is malformed.`,
			},
		)
		return "", false
	}
	return headerValueParts[1], true
}
