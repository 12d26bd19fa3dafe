package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/krancour/identity/apiserver/internal/lib/restmachinery"
	"github.com/krancour/identity/apiserver/internal/lib/restmachinery/authn"
	"github.com/krancour/identity/apiserver/internal/meta"
	"github.com/krancour/identity/apiserver/internal/sessions"
)

type issueSessionRequest struct {
	UserID string        `json:"userID"`
	Role   sessions.Role `json:"role"`
}

type exchangeRefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type endedSessions struct {
	Count int64 `json:"count"`
}

type endpoints struct {
	*restmachinery.BaseEndpoints
	issuerAuthFilter       restmachinery.Filter
	tokenAuthFilter        restmachinery.Filter
	expiredTokenAuthFilter restmachinery.Filter
	service                sessions.SessionsService
}

// NewEndpoints returns the REST endpoints for session management.
func NewEndpoints(
	issuerAuthFilter restmachinery.Filter,
	tokenAuthFilter restmachinery.Filter,
	expiredTokenAuthFilter restmachinery.Filter,
	service sessions.SessionsService,
) restmachinery.Endpoints {
	return &endpoints{
		BaseEndpoints:          &restmachinery.BaseEndpoints{},
		issuerAuthFilter:       issuerAuthFilter,
		tokenAuthFilter:        tokenAuthFilter,
		expiredTokenAuthFilter: expiredTokenAuthFilter,
		service:                service,
	}
}

func (e *endpoints) Register(router *mux.Router) {
	// Issue session
	router.HandleFunc(
		"/v1/sessions",
		e.issuerAuthFilter.Decorate(e.issue),
	).Methods(http.MethodPost)

	// Refresh the caller's session
	router.HandleFunc(
		"/v1/session/refresh",
		e.expiredTokenAuthFilter.Decorate(e.refresh),
	).Methods(http.MethodPost)

	// Exchange a refresh token for an access token
	router.HandleFunc(
		"/v1/session/exchange",
		e.exchange, // No filters applied to this request
	).Methods(http.MethodPost)

	// End the caller's session
	router.HandleFunc(
		"/v1/session",
		e.tokenAuthFilter.Decorate(e.logout),
	).Methods(http.MethodDelete)

	// List all sessions
	router.HandleFunc(
		"/v1/sessions",
		e.tokenAuthFilter.Decorate(e.list),
	).Methods(http.MethodGet)

	// Get a single session
	router.HandleFunc(
		"/v1/sessions/{id}",
		e.tokenAuthFilter.Decorate(e.get),
	).Methods(http.MethodGet)

	// End a single session
	router.HandleFunc(
		"/v1/sessions/{id}",
		e.tokenAuthFilter.Decorate(e.revoke),
	).Methods(http.MethodDelete)

	// List a user's sessions
	router.HandleFunc(
		"/v1/users/{id}/sessions",
		e.tokenAuthFilter.Decorate(e.listForUser),
	).Methods(http.MethodGet)

	// End all of a user's sessions
	router.HandleFunc(
		"/v1/users/{id}/sessions",
		e.tokenAuthFilter.Decorate(e.logoutAll),
	).Methods(http.MethodDelete)
}

func (e *endpoints) issue(w http.ResponseWriter, r *http.Request) {
	req := issueSessionRequest{}
	e.ServeRequest(
		restmachinery.InboundRequest{
			W:                   w,
			R:                   r,
			ReqBodySchemaLoader: issueSessionRequestSchemaLoader,
			ReqBodyObj:          &req,
			EndpointLogic: func() (interface{}, error) {
				return e.service.Issue(r.Context(), req.UserID, req.Role)
			},
			SuccessCode: http.StatusCreated,
		},
	)
}

func (e *endpoints) refresh(w http.ResponseWriter, r *http.Request) {
	e.ServeRequest(
		restmachinery.InboundRequest{
			W: w,
			R: r,
			EndpointLogic: func() (interface{}, error) {
				principal := authn.PrincipalFromContext(r.Context())
				if principal == nil {
					return nil, &meta.ErrAuthentication{}
				}
				return e.service.Refresh(
					r.Context(),
					principal.UserID,
					principal.Role,
					principal.SessionID,
				)
			},
			SuccessCode: http.StatusOK,
		},
	)
}

func (e *endpoints) exchange(w http.ResponseWriter, r *http.Request) {
	req := exchangeRefreshTokenRequest{}
	e.ServeRequest(
		restmachinery.InboundRequest{
			W:                   w,
			R:                   r,
			ReqBodySchemaLoader: exchangeRefreshTokenRequestSchemaLoader,
			ReqBodyObj:          &req,
			EndpointLogic: func() (interface{}, error) {
				return e.service.Exchange(r.Context(), req.RefreshToken)
			},
			SuccessCode: http.StatusOK,
		},
	)
}

func (e *endpoints) logout(w http.ResponseWriter, r *http.Request) {
	e.ServeRequest(
		restmachinery.InboundRequest{
			W: w,
			R: r,
			EndpointLogic: func() (interface{}, error) {
				principal := authn.PrincipalFromContext(r.Context())
				if principal == nil {
					return nil, &meta.ErrAuthentication{}
				}
				return struct{}{}, e.service.Logout(
					r.Context(),
					principal.UserID,
					principal.SessionID,
				)
			},
			SuccessCode: http.StatusOK,
		},
	)
}

func (e *endpoints) list(w http.ResponseWriter, r *http.Request) {
	e.ServeRequest(
		restmachinery.InboundRequest{
			W: w,
			R: r,
			EndpointLogic: func() (interface{}, error) {
				if !authn.PrincipalFromContext(r.Context()).IsAdmin() {
					return nil, &meta.ErrAuthorization{}
				}
				return e.service.List(r.Context())
			},
			SuccessCode: http.StatusOK,
		},
	)
}

func (e *endpoints) get(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	e.ServeRequest(
		restmachinery.InboundRequest{
			W: w,
			R: r,
			EndpointLogic: func() (interface{}, error) {
				session, err := e.service.Get(r.Context(), sessionID)
				if err != nil {
					return nil, err
				}
				principal := authn.PrincipalFromContext(r.Context())
				if !principal.CanActFor(session.UserID) {
					return nil, &meta.ErrAuthorization{}
				}
				return session, nil
			},
			SuccessCode: http.StatusOK,
		},
	)
}

func (e *endpoints) revoke(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	e.ServeRequest(
		restmachinery.InboundRequest{
			W: w,
			R: r,
			EndpointLogic: func() (interface{}, error) {
				session, err := e.service.Get(r.Context(), sessionID)
				if err != nil {
					return nil, err
				}
				principal := authn.PrincipalFromContext(r.Context())
				if !principal.CanActFor(session.UserID) {
					return nil, &meta.ErrAuthorization{}
				}
				return struct{}{}, e.service.Revoke(r.Context(), sessionID)
			},
			SuccessCode: http.StatusOK,
		},
	)
}

func (e *endpoints) listForUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	e.ServeRequest(
		restmachinery.InboundRequest{
			W: w,
			R: r,
			EndpointLogic: func() (interface{}, error) {
				if !authn.PrincipalFromContext(r.Context()).CanActFor(userID) {
					return nil, &meta.ErrAuthorization{}
				}
				return e.service.ListForUser(r.Context(), userID)
			},
			SuccessCode: http.StatusOK,
		},
	)
}

func (e *endpoints) logoutAll(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	e.ServeRequest(
		restmachinery.InboundRequest{
			W: w,
			R: r,
			EndpointLogic: func() (interface{}, error) {
				if !authn.PrincipalFromContext(r.Context()).CanActFor(userID) {
					return nil, &meta.ErrAuthorization{}
				}
				count, err := e.service.LogoutAll(r.Context(), userID)
				return endedSessions{Count: count}, err
			},
			SuccessCode: http.StatusOK,
		},
	)
}
