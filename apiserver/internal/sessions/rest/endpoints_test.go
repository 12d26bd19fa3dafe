package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/krancour/identity/apiserver/internal/lib/crypto"
	"github.com/krancour/identity/apiserver/internal/lib/restmachinery/authn"
	"github.com/krancour/identity/apiserver/internal/meta"
	"github.com/krancour/identity/apiserver/internal/sessions"
	"github.com/stretchr/testify/require"
)

const (
	testSigningSecret = "thisisaverylongsecretthatisnotverysecret"
	testIssuerToken   = "openseasame"
)

type mockSessionsService struct {
	IssueFn       func(context.Context, string, sessions.Role) (sessions.IssuedSession, error)
	RefreshFn     func(context.Context, string, sessions.Role, string) (sessions.AccessToken, error)
	ExchangeFn    func(context.Context, string) (sessions.AccessToken, error)
	LogoutFn      func(context.Context, string, string) error
	LogoutAllFn   func(context.Context, string) (int64, error)
	ListForUserFn func(context.Context, string) (sessions.SessionList, error)
	ListFn        func(context.Context) (sessions.SessionList, error)
	GetFn         func(context.Context, string) (sessions.Session, error)
	RevokeFn      func(context.Context, string) error
}

func (m *mockSessionsService) Issue(
	ctx context.Context,
	userID string,
	role sessions.Role,
) (sessions.IssuedSession, error) {
	return m.IssueFn(ctx, userID, role)
}

func (m *mockSessionsService) Refresh(
	ctx context.Context,
	userID string,
	role sessions.Role,
	sessionID string,
) (sessions.AccessToken, error) {
	return m.RefreshFn(ctx, userID, role, sessionID)
}

func (m *mockSessionsService) Exchange(
	ctx context.Context,
	refreshToken string,
) (sessions.AccessToken, error) {
	return m.ExchangeFn(ctx, refreshToken)
}

func (m *mockSessionsService) Logout(
	ctx context.Context,
	userID string,
	sessionID string,
) error {
	return m.LogoutFn(ctx, userID, sessionID)
}

func (m *mockSessionsService) LogoutAll(
	ctx context.Context,
	userID string,
) (int64, error) {
	return m.LogoutAllFn(ctx, userID)
}

func (m *mockSessionsService) ListForUser(
	ctx context.Context,
	userID string,
) (sessions.SessionList, error) {
	return m.ListForUserFn(ctx, userID)
}

func (m *mockSessionsService) List(
	ctx context.Context,
) (sessions.SessionList, error) {
	return m.ListFn(ctx)
}

func (m *mockSessionsService) Get(
	ctx context.Context,
	sessionID string,
) (sessions.Session, error) {
	return m.GetFn(ctx, sessionID)
}

func (m *mockSessionsService) Revoke(
	ctx context.Context,
	sessionID string,
) error {
	return m.RevokeFn(ctx, sessionID)
}

func newTestRouter(service sessions.SessionsService) *mux.Router {
	codec := sessions.NewTokenCodec(testSigningSecret, time.Minute, time.Hour)
	router := mux.NewRouter()
	NewEndpoints(
		authn.NewIssuerTokenAuthFilter(crypto.ShortSHA("", testIssuerToken)),
		authn.NewTokenAuthFilter(codec.Verify),
		authn.NewExpiredTokenAuthFilter(codec.Verify, codec.Decode),
		service,
	).Register(router)
	return router
}

func accessToken(
	t *testing.T,
	ttl time.Duration,
	userID string,
	role sessions.Role,
	sessionID string,
) string {
	codec := sessions.NewTokenCodec(testSigningSecret, ttl, time.Hour)
	token, _, err := codec.IssueAccessToken(userID, role, sessionID)
	require.NoError(t, err)
	return token
}

func TestIssue(t *testing.T) {
	testCases := []struct {
		name         string
		token        string
		body         string
		service      *mockSessionsService
		expectedCode int
	}{
		{
			name:         "wrong issuer token",
			token:        "foo",
			body:         `{"userID":"u1","role":"customer"}`,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "invalid role",
			token:        testIssuerToken,
			body:         `{"userID":"u1","role":"overlord"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "missing user ID",
			token:        testIssuerToken,
			body:         `{"role":"customer"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:  "storage unavailable",
			token: testIssuerToken,
			body:  `{"userID":"u1","role":"customer"}`,
			service: &mockSessionsService{
				IssueFn: func(
					context.Context,
					string,
					sessions.Role,
				) (sessions.IssuedSession, error) {
					return sessions.IssuedSession{},
						&meta.ErrStorageUnavailable{Store: "session ledger"}
				},
			},
			expectedCode: http.StatusServiceUnavailable,
		},
		{
			name:  "success",
			token: testIssuerToken,
			body:  `{"userID":"u1","role":"customer"}`,
			service: &mockSessionsService{
				IssueFn: func(
					_ context.Context,
					userID string,
					role sessions.Role,
				) (sessions.IssuedSession, error) {
					require.Equal(t, "u1", userID)
					require.Equal(t, sessions.RoleCustomer, role)
					return sessions.IssuedSession{SessionID: "s1"}, nil
				},
			},
			expectedCode: http.StatusCreated,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req, err := http.NewRequest(
				http.MethodPost,
				"/v1/sessions",
				bytes.NewBufferString(testCase.body),
			)
			require.NoError(t, err)
			req.Header.Add("Authorization", "Bearer "+testCase.token)
			rr := httptest.NewRecorder()
			newTestRouter(testCase.service).ServeHTTP(rr, req)
			require.Equal(t, testCase.expectedCode, rr.Code)
			if testCase.expectedCode == http.StatusCreated {
				issued := map[string]interface{}{}
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &issued))
				require.Equal(t, "IssuedSession", issued["kind"])
				require.Equal(t, "s1", issued["sessionID"])
			}
		})
	}
}

func TestRefreshWithExpiredAccessToken(t *testing.T) {
	var refreshed bool
	service := &mockSessionsService{
		RefreshFn: func(
			_ context.Context,
			userID string,
			role sessions.Role,
			sessionID string,
		) (sessions.AccessToken, error) {
			refreshed = true
			require.Equal(t, "u1", userID)
			require.Equal(t, sessions.RoleCustomer, role)
			require.Equal(t, "s1", sessionID)
			return sessions.AccessToken{SessionID: sessionID, Value: "foo"}, nil
		},
	}
	req, err := http.NewRequest(http.MethodPost, "/v1/session/refresh", nil)
	require.NoError(t, err)
	req.Header.Add(
		"Authorization",
		"Bearer "+accessToken(t, -time.Minute, "u1", sessions.RoleCustomer, "s1"),
	)
	rr := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, refreshed)
	require.Contains(t, rr.Body.String(), `"value":"foo"`)
}

func TestRefreshWithExpiredSession(t *testing.T) {
	service := &mockSessionsService{
		RefreshFn: func(
			context.Context,
			string,
			sessions.Role,
			string,
		) (sessions.AccessToken, error) {
			return sessions.AccessToken{},
				&meta.ErrExpired{Type: "Session", ID: "s1"}
		},
	}
	req, err := http.NewRequest(http.MethodPost, "/v1/session/refresh", nil)
	require.NoError(t, err)
	req.Header.Add(
		"Authorization",
		"Bearer "+accessToken(t, time.Minute, "u1", sessions.RoleCustomer, "s1"),
	)
	rr := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Body.String(), "ExpiredError")
}

func TestExchange(t *testing.T) {
	service := &mockSessionsService{
		ExchangeFn: func(
			_ context.Context,
			refreshToken string,
		) (sessions.AccessToken, error) {
			if refreshToken != "foo" {
				return sessions.AccessToken{}, &meta.ErrMalformed{Reason: "bar"}
			}
			return sessions.AccessToken{SessionID: "s1", Value: "bat"}, nil
		},
	}
	testCases := []struct {
		body         string
		expectedCode int
	}{
		{
			body:         `{}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			body:         `{"refreshToken":"baz"}`,
			expectedCode: http.StatusUnauthorized,
		},
		{
			body:         `{"refreshToken":"foo"}`,
			expectedCode: http.StatusOK,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.body, func(t *testing.T) {
			req, err := http.NewRequest(
				http.MethodPost,
				"/v1/session/exchange",
				bytes.NewBufferString(testCase.body),
			)
			require.NoError(t, err)
			rr := httptest.NewRecorder()
			newTestRouter(service).ServeHTTP(rr, req)
			require.Equal(t, testCase.expectedCode, rr.Code)
		})
	}
}

func TestLogout(t *testing.T) {
	service := &mockSessionsService{
		LogoutFn: func(_ context.Context, userID, sessionID string) error {
			require.Equal(t, "u1", userID)
			if sessionID == "s1" {
				return nil
			}
			return &meta.ErrNotFound{Type: "ActiveSession", ID: sessionID}
		},
	}
	testCases := []struct {
		name         string
		token        string
		expectedCode int
	}{
		{
			name:         "expired access token",
			token:        accessToken(t, -time.Minute, "u1", sessions.RoleCustomer, "s1"),
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "no active session",
			token:        accessToken(t, time.Minute, "u1", sessions.RoleCustomer, "s2"),
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "success",
			token:        accessToken(t, time.Minute, "u1", sessions.RoleCustomer, "s1"),
			expectedCode: http.StatusOK,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodDelete, "/v1/session", nil)
			require.NoError(t, err)
			req.Header.Add("Authorization", "Bearer "+testCase.token)
			rr := httptest.NewRecorder()
			newTestRouter(service).ServeHTTP(rr, req)
			require.Equal(t, testCase.expectedCode, rr.Code)
		})
	}
}

func TestUserSessions(t *testing.T) {
	service := &mockSessionsService{
		ListFn: func(context.Context) (sessions.SessionList, error) {
			return sessions.SessionList{
				ListMeta: meta.ListMeta{Count: 1},
				Items: []sessions.Session{
					{UserID: "u1", SessionID: "s1", Token: "topsecret"},
				},
			}, nil
		},
		ListForUserFn: func(
			_ context.Context,
			userID string,
		) (sessions.SessionList, error) {
			return sessions.SessionList{
				ListMeta: meta.ListMeta{Count: 1},
				Items: []sessions.Session{
					{UserID: userID, SessionID: "s1", Token: "topsecret"},
				},
			}, nil
		},
		LogoutAllFn: func(context.Context, string) (int64, error) {
			return 2, nil
		},
	}
	customerToken :=
		accessToken(t, time.Minute, "u1", sessions.RoleCustomer, "s1")
	adminToken := accessToken(t, time.Minute, "u9", sessions.RoleAdmin, "s9")
	testCases := []struct {
		name         string
		method       string
		path         string
		token        string
		expectedCode int
		assertions   func(*httptest.ResponseRecorder)
	}{
		{
			name:         "customer lists all sessions",
			method:       http.MethodGet,
			path:         "/v1/sessions",
			token:        customerToken,
			expectedCode: http.StatusForbidden,
		},
		{
			name:         "admin lists all sessions",
			method:       http.MethodGet,
			path:         "/v1/sessions",
			token:        adminToken,
			expectedCode: http.StatusOK,
			assertions: func(rr *httptest.ResponseRecorder) {
				require.Contains(t, rr.Body.String(), `"kind":"SessionList"`)
				require.NotContains(t, rr.Body.String(), "topsecret")
			},
		},
		{
			name:         "customer lists own sessions",
			method:       http.MethodGet,
			path:         "/v1/users/u1/sessions",
			token:        customerToken,
			expectedCode: http.StatusOK,
		},
		{
			name:         "customer lists another user's sessions",
			method:       http.MethodGet,
			path:         "/v1/users/u2/sessions",
			token:        customerToken,
			expectedCode: http.StatusForbidden,
		},
		{
			name:         "customer ends another user's sessions",
			method:       http.MethodDelete,
			path:         "/v1/users/u2/sessions",
			token:        customerToken,
			expectedCode: http.StatusForbidden,
		},
		{
			name:         "admin ends another user's sessions",
			method:       http.MethodDelete,
			path:         "/v1/users/u2/sessions",
			token:        adminToken,
			expectedCode: http.StatusOK,
			assertions: func(rr *httptest.ResponseRecorder) {
				require.JSONEq(t, `{"count":2}`, rr.Body.String())
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req, err := http.NewRequest(testCase.method, testCase.path, nil)
			require.NoError(t, err)
			req.Header.Add("Authorization", "Bearer "+testCase.token)
			rr := httptest.NewRecorder()
			newTestRouter(service).ServeHTTP(rr, req)
			require.Equal(t, testCase.expectedCode, rr.Code)
			if testCase.assertions != nil {
				testCase.assertions(rr)
			}
		})
	}
}

func TestSession(t *testing.T) {
	var revoked string
	service := &mockSessionsService{
		GetFn: func(
			_ context.Context,
			sessionID string,
		) (sessions.Session, error) {
			if sessionID != "s1" {
				return sessions.Session{},
					&meta.ErrNotFound{Type: "Session", ID: sessionID}
			}
			return sessions.Session{
				UserID:    "u1",
				SessionID: "s1",
				Role:      sessions.RoleCustomer,
				Token:     "topsecret",
			}, nil
		},
		RevokeFn: func(_ context.Context, sessionID string) error {
			revoked = sessionID
			return nil
		},
	}
	ownerToken :=
		accessToken(t, time.Minute, "u1", sessions.RoleCustomer, "s2")
	otherToken :=
		accessToken(t, time.Minute, "u2", sessions.RoleCustomer, "s3")
	adminToken := accessToken(t, time.Minute, "u9", sessions.RoleAdmin, "s9")
	testCases := []struct {
		name         string
		method       string
		path         string
		token        string
		expectedCode int
		assertions   func(*httptest.ResponseRecorder)
	}{
		{
			name:         "unauthenticated",
			method:       http.MethodGet,
			path:         "/v1/sessions/s1",
			token:        "bogus",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "owner gets session",
			method:       http.MethodGet,
			path:         "/v1/sessions/s1",
			token:        ownerToken,
			expectedCode: http.StatusOK,
			assertions: func(rr *httptest.ResponseRecorder) {
				require.Contains(t, rr.Body.String(), `"sessionID":"s1"`)
				require.NotContains(t, rr.Body.String(), "topsecret")
			},
		},
		{
			name:         "another user gets session",
			method:       http.MethodGet,
			path:         "/v1/sessions/s1",
			token:        otherToken,
			expectedCode: http.StatusForbidden,
		},
		{
			name:         "unknown session",
			method:       http.MethodGet,
			path:         "/v1/sessions/nope",
			token:        adminToken,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "another user revokes session",
			method:       http.MethodDelete,
			path:         "/v1/sessions/s1",
			token:        otherToken,
			expectedCode: http.StatusForbidden,
			assertions: func(*httptest.ResponseRecorder) {
				require.Empty(t, revoked)
			},
		},
		{
			name:         "admin revokes session",
			method:       http.MethodDelete,
			path:         "/v1/sessions/s1",
			token:        adminToken,
			expectedCode: http.StatusOK,
			assertions: func(*httptest.ResponseRecorder) {
				require.Equal(t, "s1", revoked)
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req, err := http.NewRequest(testCase.method, testCase.path, nil)
			require.NoError(t, err)
			req.Header.Add("Authorization", "Bearer "+testCase.token)
			rr := httptest.NewRecorder()
			newTestRouter(service).ServeHTTP(rr, req)
			require.Equal(t, testCase.expectedCode, rr.Code)
			if testCase.assertions != nil {
				testCase.assertions(rr)
			}
		})
	}
}
