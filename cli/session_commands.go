package main

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/krancour/identity/sdk/meta"
	"github.com/krancour/identity/sdk/sessions"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/ssh/terminal"
)

var sessionCommand = &cli.Command{
	Name:  "session",
	Usage: "Manage sessions",
	Subcommands: []*cli.Command{
		{
			Name:   "refresh",
			Usage:  "Obtain a new access token for the current session",
			Action: sessionRefresh,
		},
		{
			Name: "exchange",
			Usage: "Obtain a new access token for the current session using only " +
				"its refresh token",
			Action: sessionExchange,
		},
		{
			Name:  "list",
			Usage: "Retrieve many sessions",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    flagUser,
					Aliases: []string{"u"},
					Usage: "Retrieve only the specified user's sessions; when " +
						"omitted, all sessions are retrieved (admins only)",
				},
				cliFlagOutput,
			},
			Action: sessionList,
		},
		{
			Name:  "get",
			Usage: "Retrieve a session",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagID,
					Aliases:  []string{"i"},
					Usage:    "Retrieve the specified session (required)",
					Required: true,
				},
				cliFlagOutput,
			},
			Action: sessionGet,
		},
		{
			Name:  "revoke",
			Usage: "End a single session",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagID,
					Aliases:  []string{"i"},
					Usage:    "End the specified session (required)",
					Required: true,
				},
			},
			Action: sessionRevoke,
		},
		{
			Name:  "end-all",
			Usage: "End all of a user's sessions",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagUser,
					Aliases:  []string{"u"},
					Usage:    "End all of the specified user's sessions (required)",
					Required: true,
				},
				&cli.BoolFlag{
					Name:    flagYes,
					Aliases: []string{"y"},
					Usage:   "Non-interactively confirm",
				},
			},
			Action: sessionEndAll,
		},
	},
}

func sessionRefresh(c *cli.Context) error {
	client, config, err := getClient(c)
	if err != nil {
		return errors.Wrap(err, "error getting identity client")
	}

	token, err := client.Refresh(c.Context)
	if err != nil {
		return loginAgainIfEnded(err)
	}

	return saveAccessToken(config, token)
}

func sessionExchange(c *cli.Context) error {
	config, err := getConfig()
	if err != nil {
		return errors.Wrapf(err, "error retrieving configuration")
	}

	// The exchange endpoint requires no access token
	client := sessions.NewSessionsClient(
		config.APIAddress,
		"",
		c.Bool(flagInsecure),
	)

	token, err := client.Exchange(c.Context, config.RefreshToken)
	if err != nil {
		return loginAgainIfEnded(err)
	}

	return saveAccessToken(config, token)
}

func sessionList(c *cli.Context) error {
	userID := c.String(flagUser)
	output := c.String(flagOutput)

	if err := validateOutputFormat(output); err != nil {
		return err
	}

	client, _, err := getClient(c)
	if err != nil {
		return errors.Wrap(err, "error getting identity client")
	}

	var sessionList sessions.SessionList
	if userID == "" {
		sessionList, err = client.List(c.Context)
	} else {
		sessionList, err = client.ListForUser(c.Context, userID)
	}
	if err != nil {
		return err
	}

	if len(sessionList.Items) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	formatted, err := formatSessionList(sessionList, output)
	if err != nil {
		return err
	}
	fmt.Println(formatted)

	return nil
}

func sessionGet(c *cli.Context) error {
	sessionID := c.String(flagID)
	output := c.String(flagOutput)

	if err := validateOutputFormat(output); err != nil {
		return err
	}

	client, _, err := getClient(c)
	if err != nil {
		return errors.Wrap(err, "error getting identity client")
	}

	session, err := client.Get(c.Context, sessionID)
	if err != nil {
		return err
	}

	formatted, err := formatSession(session, output)
	if err != nil {
		return err
	}
	fmt.Println(formatted)

	return nil
}

func sessionRevoke(c *cli.Context) error {
	sessionID := c.String(flagID)

	client, config, err := getClient(c)
	if err != nil {
		return errors.Wrap(err, "error getting identity client")
	}

	if err = client.Revoke(c.Context, sessionID); err != nil {
		return err
	}

	fmt.Printf("Ended session %s.\n", sessionID)

	if sessionID == config.SessionID {
		if err := deleteConfig(); err != nil {
			return errors.Wrap(err, "error deleting configuration")
		}
		fmt.Println("That was the current session; you are now logged out.")
	}

	return nil
}

func sessionEndAll(c *cli.Context) error {
	userID := c.String(flagUser)

	if !c.Bool(flagYes) {
		if !terminal.IsTerminal(int(os.Stdin.Fd())) {
			return errors.Errorf(
				"ending all of %s's sessions cannot be undone; re-run with --%s "+
					"to confirm",
				userID,
				flagYes,
			)
		}
		var confirmed bool
		if err := survey.AskOne(
			&survey.Confirm{
				Message: fmt.Sprintf("End all of %s's sessions?", userID),
			},
			&confirmed,
		); err != nil {
			return errors.Wrap(err, "error confirming if user wishes to continue")
		}
		if !confirmed {
			return nil
		}
	}

	client, config, err := getClient(c)
	if err != nil {
		return errors.Wrap(err, "error getting identity client")
	}

	count, err := client.LogoutAll(c.Context, userID)
	if err != nil {
		return err
	}

	fmt.Printf("Ended %d session(s) belonging to %s.\n", count, userID)

	if userID == config.UserID {
		if err := deleteConfig(); err != nil {
			return errors.Wrap(err, "error deleting configuration")
		}
		fmt.Println("The current session was among them; you are now logged out.")
	}

	return nil
}

func saveAccessToken(config *config, token sessions.AccessToken) error {
	config.AccessToken = token.Value
	config.AccessTokenExpires = token.Expires
	if token.RefreshToken != "" {
		config.RefreshToken = token.RefreshToken
	}
	if token.RefreshTokenExpires != nil {
		config.RefreshTokenExpires = *token.RefreshTokenExpires
	}
	if err := saveConfig(config); err != nil {
		return errors.Wrap(err, "error persisting configuration")
	}
	fmt.Println(formatTokenExpiry("Access token", config.AccessTokenExpires))
	return nil
}

// loginAgainIfEnded decorates errors that mean the current session can never
// be used again.
func loginAgainIfEnded(err error) error {
	switch errors.Cause(err).(type) {
	case *meta.ErrExpired, *meta.ErrMalformed, *meta.ErrNotFound:
		return errors.Wrap(
			err,
			"the current session has ended; please use `identity login` to "+
				"start a new one",
		)
	}
	return err
}
