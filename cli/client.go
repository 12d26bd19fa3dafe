package main

import (
	"github.com/krancour/identity/sdk/sessions"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// getClient returns a client that presents the access token of the session
// the CLI is logged in with.
func getClient(c *cli.Context) (sessions.SessionsClient, *config, error) {
	config, err := getConfig()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error retrieving configuration")
	}
	return sessions.NewSessionsClient(
		config.APIAddress,
		config.AccessToken,
		c.Bool(flagInsecure),
	), config, nil
}
