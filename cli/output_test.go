package main

import (
	"testing"
	"time"

	"github.com/krancour/identity/sdk/meta"
	"github.com/krancour/identity/sdk/sessions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestValidateOutputFormat(t *testing.T) {
	for _, format := range []string{"table", "YAML", "json"} {
		require.NoError(t, validateOutputFormat(format))
	}
	require.Error(t, validateOutputFormat("xml"))
}

func TestFormatSessionList(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sessionList := sessions.SessionList{
		ListMeta: meta.ListMeta{Count: 1},
		Items: []sessions.Session{
			{
				UserID:    "tony@starkindustries.com",
				SessionID: "2c0a6d4e-80a2-4d8b-a3b7-7c5e0fd3c1a9",
				Role:      sessions.RoleAdmin,
				ExpiresAt: created.Add(7 * 24 * time.Hour),
				Created:   &created,
			},
		},
	}
	testCases := []struct {
		name       string
		format     string
		assertions func(t *testing.T, formatted string)
	}{
		{
			name:   "table",
			format: "table",
			assertions: func(t *testing.T, formatted string) {
				require.Contains(t, formatted, "SESSION")
				require.Contains(t, formatted, "2024-03-08T12:00:00Z")
				require.Contains(t, formatted, "admin")
			},
		},
		{
			name:   "yaml",
			format: "yaml",
			assertions: func(t *testing.T, formatted string) {
				require.Contains(t, formatted, "userID: tony@starkindustries.com")
				require.Contains(t, formatted, "count: 1")
			},
		},
		{
			name:   "json",
			format: "json",
			assertions: func(t *testing.T, formatted string) {
				require.Contains(t, formatted, `"sessionID": "2c0a6d4e`)
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			formatted, err := formatSessionList(sessionList, testCase.format)
			require.NoError(t, err)
			testCase.assertions(t, formatted)
		})
	}
}

func TestFormatSession(t *testing.T) {
	session := sessions.Session{
		UserID:    "tony@starkindustries.com",
		SessionID: "2c0a6d4e-80a2-4d8b-a3b7-7c5e0fd3c1a9",
		Role:      sessions.RoleCustomer,
		ExpiresAt: time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC),
	}
	testCases := []struct {
		name       string
		format     string
		assertions func(t *testing.T, formatted string)
	}{
		{
			name:   "table",
			format: "table",
			assertions: func(t *testing.T, formatted string) {
				require.Contains(t, formatted, "SESSION")
				require.Contains(t, formatted, "customer")
			},
		},
		{
			name:   "yaml",
			format: "yaml",
			assertions: func(t *testing.T, formatted string) {
				require.Contains(t, formatted, "role: customer")
				require.NotContains(t, formatted, "items")
			},
		},
		{
			name:   "json",
			format: "json",
			assertions: func(t *testing.T, formatted string) {
				require.Contains(t, formatted, `"userID": "tony@starkindustries.com"`)
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			formatted, err := formatSession(session, testCase.format)
			require.NoError(t, err)
			testCase.assertions(t, formatted)
		})
	}
}

func TestLoginAgainIfEnded(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		decorate bool
	}{
		{
			name:     "expired",
			err:      &meta.ErrExpired{Type: "RefreshToken"},
			decorate: true,
		},
		{
			name:     "malformed",
			err:      &meta.ErrMalformed{},
			decorate: true,
		},
		{
			name:     "session gone",
			err:      &meta.ErrNotFound{Type: "Session"},
			decorate: true,
		},
		{
			name: "store unavailable",
			err:  &meta.ErrStorageUnavailable{Store: "session ledger"},
		},
		{
			name: "other",
			err:  errors.New("something went wrong"),
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := loginAgainIfEnded(testCase.err)
			require.Equal(t, testCase.err, errors.Cause(err))
			if testCase.decorate {
				require.Contains(t, err.Error(), "identity login")
			} else {
				require.Equal(t, testCase.err, err)
			}
		})
	}
}
