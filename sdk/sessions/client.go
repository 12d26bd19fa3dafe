package sessions

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	rm "github.com/krancour/identity/sdk/internal/restmachinery"
)

// SessionsClient is the specialized client for managing sessions with the
// identity API.
type SessionsClient interface {
	// Issue starts a new session for the specified user. The client's token must
	// be the API server's issuer token.
	Issue(ctx context.Context, userID string, role Role) (IssuedSession, error)
	// Refresh mints a new access token for the session the client's token
	// belongs to. The client's token may already have expired.
	Refresh(context.Context) (AccessToken, error)
	// Exchange mints a new access token using only a refresh token.
	Exchange(ctx context.Context, refreshToken string) (AccessToken, error)
	// Logout ends the session the client's token belongs to.
	Logout(context.Context) error
	// List returns every session. Only administrators may do this.
	List(context.Context) (SessionList, error)
	// Get returns a single session. Only the session's holder or an
	// administrator may do this.
	Get(ctx context.Context, sessionID string) (Session, error)
	// Revoke ends a single session. Only the session's holder or an
	// administrator may do this.
	Revoke(ctx context.Context, sessionID string) error
	// ListForUser returns all of the specified user's sessions.
	ListForUser(ctx context.Context, userID string) (SessionList, error)
	// LogoutAll ends all of the specified user's sessions and returns how many
	// were ended.
	LogoutAll(ctx context.Context, userID string) (int64, error)
}

type sessionsClient struct {
	*rm.BaseClient
}

// NewSessionsClient returns a specialized client for managing sessions.
func NewSessionsClient(
	apiAddress string,
	apiToken string,
	allowInsecure bool,
) SessionsClient {
	return &sessionsClient{
		BaseClient: rm.NewBaseClient(apiAddress, apiToken, allowInsecure),
	}
}

func (s *sessionsClient) Issue(
	ctx context.Context,
	userID string,
	role Role,
) (IssuedSession, error) {
	issuedSession := IssuedSession{}
	err := s.ExecuteRequest(
		ctx,
		rm.OutboundRequest{
			Method:      http.MethodPost,
			Path:        "v1/sessions",
			AuthHeaders: s.BearerTokenAuthHeaders(),
			ReqBodyObj: struct {
				UserID string `json:"userID"`
				Role   Role   `json:"role"`
			}{
				UserID: userID,
				Role:   role,
			},
			SuccessCode: http.StatusCreated,
			RespObj:     &issuedSession,
		},
	)
	return issuedSession, err
}

func (s *sessionsClient) Refresh(ctx context.Context) (AccessToken, error) {
	token := AccessToken{}
	err := s.ExecuteRequest(
		ctx,
		rm.OutboundRequest{
			Method:      http.MethodPost,
			Path:        "v1/session/refresh",
			AuthHeaders: s.BearerTokenAuthHeaders(),
			SuccessCode: http.StatusOK,
			RespObj:     &token,
		},
	)
	return token, err
}

func (s *sessionsClient) Exchange(
	ctx context.Context,
	refreshToken string,
) (AccessToken, error) {
	token := AccessToken{}
	err := s.ExecuteRequest(
		ctx,
		rm.OutboundRequest{
			Method: http.MethodPost,
			Path:   "v1/session/exchange",
			ReqBodyObj: struct {
				RefreshToken string `json:"refreshToken"`
			}{
				RefreshToken: refreshToken,
			},
			SuccessCode: http.StatusOK,
			RespObj:     &token,
		},
	)
	return token, err
}

func (s *sessionsClient) Logout(ctx context.Context) error {
	return s.ExecuteRequest(
		ctx,
		rm.OutboundRequest{
			Method:      http.MethodDelete,
			Path:        "v1/session",
			AuthHeaders: s.BearerTokenAuthHeaders(),
			SuccessCode: http.StatusOK,
		},
	)
}

func (s *sessionsClient) List(ctx context.Context) (SessionList, error) {
	sessions := SessionList{}
	err := s.ExecuteRequest(
		ctx,
		rm.OutboundRequest{
			Method:      http.MethodGet,
			Path:        "v1/sessions",
			AuthHeaders: s.BearerTokenAuthHeaders(),
			SuccessCode: http.StatusOK,
			RespObj:     &sessions,
		},
	)
	return sessions, err
}

func (s *sessionsClient) Get(
	ctx context.Context,
	sessionID string,
) (Session, error) {
	session := Session{}
	err := s.ExecuteRequest(
		ctx,
		rm.OutboundRequest{
			Method:      http.MethodGet,
			Path:        fmt.Sprintf("v1/sessions/%s", url.PathEscape(sessionID)),
			AuthHeaders: s.BearerTokenAuthHeaders(),
			SuccessCode: http.StatusOK,
			RespObj:     &session,
		},
	)
	return session, err
}

func (s *sessionsClient) Revoke(ctx context.Context, sessionID string) error {
	return s.ExecuteRequest(
		ctx,
		rm.OutboundRequest{
			Method:      http.MethodDelete,
			Path:        fmt.Sprintf("v1/sessions/%s", url.PathEscape(sessionID)),
			AuthHeaders: s.BearerTokenAuthHeaders(),
			SuccessCode: http.StatusOK,
		},
	)
}

func (s *sessionsClient) ListForUser(
	ctx context.Context,
	userID string,
) (SessionList, error) {
	sessions := SessionList{}
	err := s.ExecuteRequest(
		ctx,
		rm.OutboundRequest{
			Method:      http.MethodGet,
			Path:        fmt.Sprintf("v1/users/%s/sessions", url.PathEscape(userID)),
			AuthHeaders: s.BearerTokenAuthHeaders(),
			SuccessCode: http.StatusOK,
			RespObj:     &sessions,
		},
	)
	return sessions, err
}

func (s *sessionsClient) LogoutAll(
	ctx context.Context,
	userID string,
) (int64, error) {
	ended := struct {
		Count int64 `json:"count"`
	}{}
	err := s.ExecuteRequest(
		ctx,
		rm.OutboundRequest{
			Method:      http.MethodDelete,
			Path:        fmt.Sprintf("v1/users/%s/sessions", url.PathEscape(userID)),
			AuthHeaders: s.BearerTokenAuthHeaders(),
			SuccessCode: http.StatusOK,
			RespObj:     &ended,
		},
	)
	return ended.Count, err
}
