package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/krancour/identity/apiserver/internal/meta"
	"github.com/krancour/identity/apiserver/internal/sessions"
	"github.com/stretchr/testify/require"
)

const testSigningSecret = "thisisaverylongsecretthatisnotverysecret"

func TestTokenAuthFilterWithHeaderMissing(t *testing.T) {
	a := NewTokenAuthFilter(nil)
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	handlerCalled := false
	a.Decorate(func(http.ResponseWriter, *http.Request) {
		handlerCalled = true
	})(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.False(t, handlerCalled)
}

func TestTokenAuthFilterWithHeaderNotBearer(t *testing.T) {
	a := NewTokenAuthFilter(nil)
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	req.Header.Add("Authorization", "Digest foo")
	rr := httptest.NewRecorder()
	handlerCalled := false
	a.Decorate(func(http.ResponseWriter, *http.Request) {
		handlerCalled = true
	})(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.False(t, handlerCalled)
}

func TestTokenAuthFilter(t *testing.T) {
	codec := sessions.NewTokenCodec(testSigningSecret, time.Minute, time.Hour)
	expiringCodec :=
		sessions.NewTokenCodec(testSigningSecret, -time.Minute, time.Hour)
	tokens, err := codec.Issue("u1", sessions.RoleCustomer, "s1")
	require.NoError(t, err)
	expiredTokens, err := expiringCodec.Issue("u1", sessions.RoleCustomer, "s1")
	require.NoError(t, err)
	testCases := []struct {
		name         string
		token        string
		expectedCode int
		assertions   func(*Principal)
	}{
		{
			name:         "garbage token",
			token:        "foo",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "valid access token",
			token:        tokens.AccessToken,
			expectedCode: http.StatusOK,
			assertions: func(principal *Principal) {
				require.Equal(
					t,
					&Principal{
						UserID:    "u1",
						Role:      sessions.RoleCustomer,
						SessionID: "s1",
					},
					principal,
				)
			},
		},
		{
			name:         "refresh token",
			token:        tokens.RefreshToken,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "expired access token",
			token:        expiredTokens.AccessToken,
			expectedCode: http.StatusUnauthorized,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			a := NewTokenAuthFilter(codec.Verify)
			req, err := http.NewRequest(http.MethodGet, "/", nil)
			require.NoError(t, err)
			req.Header.Add("Authorization", "Bearer "+testCase.token)
			rr := httptest.NewRecorder()
			var principal *Principal
			a.Decorate(func(w http.ResponseWriter, r *http.Request) {
				principal = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})(rr, req)
			require.Equal(t, testCase.expectedCode, rr.Code)
			if testCase.assertions != nil {
				testCase.assertions(principal)
			} else {
				require.Nil(t, principal)
			}
		})
	}
}

func TestExpiredTokenAuthFilter(t *testing.T) {
	codec := sessions.NewTokenCodec(testSigningSecret, -time.Minute, time.Hour)
	otherCodec := sessions.NewTokenCodec(
		"anotherverylongsecretthatisnotverysecret",
		-time.Minute,
		time.Hour,
	)
	tokens, err := codec.Issue("u1", sessions.RoleAdmin, "s1")
	require.NoError(t, err)
	forgedTokens, err := otherCodec.Issue("u1", sessions.RoleAdmin, "s1")
	require.NoError(t, err)
	testCases := []struct {
		name         string
		token        string
		expectedCode int
	}{
		{
			name:         "expired access token",
			token:        tokens.AccessToken,
			expectedCode: http.StatusOK,
		},
		{
			name:         "expired access token with a bad signature",
			token:        forgedTokens.AccessToken,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "refresh token",
			token:        tokens.RefreshToken,
			expectedCode: http.StatusUnauthorized,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			a := NewExpiredTokenAuthFilter(codec.Verify, codec.Decode)
			req, err := http.NewRequest(http.MethodPost, "/", nil)
			require.NoError(t, err)
			req.Header.Add("Authorization", "Bearer "+testCase.token)
			rr := httptest.NewRecorder()
			var principal *Principal
			a.Decorate(func(w http.ResponseWriter, r *http.Request) {
				principal = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})(rr, req)
			require.Equal(t, testCase.expectedCode, rr.Code)
			if testCase.expectedCode == http.StatusOK {
				require.NotNil(t, principal)
				require.Equal(t, "s1", principal.SessionID)
				require.True(t, principal.IsAdmin())
			}
		})
	}
}

func TestTokenAuthFilterWithVerificationFailure(t *testing.T) {
	a := NewTokenAuthFilter(
		func(string) (sessions.Claims, error) {
			return sessions.Claims{}, &meta.ErrStorageUnavailable{}
		},
	)
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	req.Header.Add("Authorization", "Bearer foo")
	rr := httptest.NewRecorder()
	handlerCalled := false
	a.Decorate(func(http.ResponseWriter, *http.Request) {
		handlerCalled = true
	})(rr, req)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.False(t, handlerCalled)
}

func TestPrincipal(t *testing.T) {
	var nobody *Principal
	require.False(t, nobody.IsAdmin())
	require.False(t, nobody.CanActFor("u1"))
	customer := &Principal{UserID: "u1", Role: sessions.RoleCustomer}
	require.False(t, customer.IsAdmin())
	require.True(t, customer.CanActFor("u1"))
	require.False(t, customer.CanActFor("u2"))
	admin := &Principal{UserID: "u3", Role: sessions.RoleAdmin}
	require.True(t, admin.CanActFor("u2"))
}
