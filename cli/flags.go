package main

import "github.com/urfave/cli/v2"

const (
	flagID          = "id"
	flagInsecure    = "insecure"
	flagIssuerToken = "issuer-token"
	flagOutput      = "output"
	flagRole        = "role"
	flagServer      = "server"
	flagUser        = "user"
	flagYes         = "yes"
)

var (
	cliFlagOutput = &cli.StringFlag{
		Name:    flagOutput,
		Aliases: []string{"o"},
		Usage: "Return output in the specified format; supported formats: table, " +
			"yaml, json",
		Value: "table",
	}
)
