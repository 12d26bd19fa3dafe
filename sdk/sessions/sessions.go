package sessions

import (
	"time"

	"github.com/krancour/identity/sdk/meta"
)

// Role is the role a session was issued for.
type Role string

const (
	// RoleCustomer represents a customer of the platform.
	RoleCustomer Role = "customer"
	// RoleRestaurant represents a restaurant partner.
	RoleRestaurant Role = "restaurant"
	// RoleDeliveryPartner represents a delivery partner.
	RoleDeliveryPartner Role = "delivery_partner"
	// RoleAdmin represents a platform administrator.
	RoleAdmin Role = "admin"
)

// Session describes one of a user's login sessions. Tokens are never
// returned by the API server when listing sessions.
type Session struct {
	meta.TypeMeta `json:",inline"`
	UserID        string     `json:"userID"`
	SessionID     string     `json:"sessionID"`
	Role          Role       `json:"role,omitempty"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	Created       *time.Time `json:"created,omitempty"`
	Updated       *time.Time `json:"updated,omitempty"`
}

// SessionList is an ordered collection of Sessions, newest first.
type SessionList struct {
	meta.TypeMeta `json:",inline"`
	meta.ListMeta `json:"metadata"`
	Items         []Session `json:"items"`
}

// IssuedSession is the token pair returned when a new session is issued.
type IssuedSession struct {
	meta.TypeMeta       `json:",inline"`
	SessionID           string    `json:"sessionID"`
	AccessToken         string    `json:"accessToken"`
	AccessTokenExpires  time.Time `json:"accessTokenExpires"`
	RefreshToken        string    `json:"refreshToken"`
	RefreshTokenExpires time.Time `json:"refreshTokenExpires"`
}

// AccessToken is a freshly minted access token. RefreshToken and
// RefreshTokenExpires are only populated when the API server rotates refresh
// tokens.
type AccessToken struct {
	meta.TypeMeta       `json:",inline"`
	SessionID           string     `json:"sessionID"`
	Value               string     `json:"value"`
	Expires             time.Time  `json:"expires"`
	RefreshToken        string     `json:"refreshToken,omitempty"`
	RefreshTokenExpires *time.Time `json:"refreshTokenExpires,omitempty"`
}
