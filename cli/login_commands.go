package main

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/krancour/identity/sdk/sessions"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/ssh/terminal"
)

var loginCommand = &cli.Command{
	Name:  "login",
	Usage: "Start a new session on behalf of a user",
	Description: "Only components trusted to verify user credentials hold the " +
		"issuer token required to start sessions",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     flagServer,
			Aliases:  []string{"s"},
			Usage:    "Log into the API server at the specified address (required)",
			Required: true,
		},
		&cli.StringFlag{
			Name:     flagIssuerToken,
			Aliases:  []string{"t"},
			Usage: "The API server's issuer token; if not specified, and a " +
				"terminal is attached, the token will be prompted for",
			EnvVars: []string{"IDENTITY_ISSUER_TOKEN"},
		},
		&cli.StringFlag{
			Name:     flagUser,
			Aliases:  []string{"u"},
			Usage:    "Start a session for the specified user (required)",
			Required: true,
		},
		&cli.StringFlag{
			Name:    flagRole,
			Aliases: []string{"r"},
			Usage: "Start a session with the specified role; supported roles: " +
				"customer, restaurant, delivery_partner, admin",
			Value: string(sessions.RoleCustomer),
		},
	},
	Action: login,
}

var logoutCommand = &cli.Command{
	Name:   "logout",
	Usage:  "End the current session",
	Action: logout,
}

func login(c *cli.Context) error {
	address := c.String(flagServer)
	userID := c.String(flagUser)
	role := sessions.Role(c.String(flagRole))
	issuerToken := c.String(flagIssuerToken)

	if issuerToken == "" {
		if !terminal.IsTerminal(int(os.Stdin.Fd())) {
			return errors.Errorf(
				"an issuer token is required; please use --%s",
				flagIssuerToken,
			)
		}
		if err := survey.AskOne(
			&survey.Password{
				Message: "Issuer token",
			},
			&issuerToken,
		); err != nil {
			return errors.Wrap(err, "error prompting for issuer token")
		}
	}

	client := sessions.NewSessionsClient(
		address,
		issuerToken,
		c.Bool(flagInsecure),
	)

	issued, err := client.Issue(c.Context, userID, role)
	if err != nil {
		return err
	}

	if err := saveConfig(
		&config{
			APIAddress:          address,
			UserID:              userID,
			SessionID:           issued.SessionID,
			AccessToken:         issued.AccessToken,
			AccessTokenExpires:  issued.AccessTokenExpires,
			RefreshToken:        issued.RefreshToken,
			RefreshTokenExpires: issued.RefreshTokenExpires,
		},
	); err != nil {
		return errors.Wrap(err, "error persisting configuration")
	}

	fmt.Printf("Started session %s for %s.\n", issued.SessionID, userID)
	fmt.Println(formatTokenExpiry("Session", issued.RefreshTokenExpires))

	return nil
}

func logout(c *cli.Context) error {
	client, _, err := getClient(c)
	if err != nil {
		return errors.Wrap(err, "error getting identity client")
	}

	// We're ignoring any error here because even if the session wasn't found
	// and deleted server-side, we still want to move on to destroying the local
	// tokens.
	client.Logout(c.Context) // nolint: errcheck

	if err := deleteConfig(); err != nil {
		return errors.Wrap(err, "error deleting configuration")
	}

	fmt.Println("Logout was successful.")

	return nil
}
