package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/gosuri/uitable"
	"github.com/krancour/identity/sdk/sessions"
	"github.com/pkg/errors"
)

func validateOutputFormat(outputFormat string) error {
	switch strings.ToLower(outputFormat) {
	case "table":
	case "yaml":
	case "json":
	default:
		return errors.Errorf("unknown output format %q", outputFormat)
	}
	return nil
}

func formatSessionList(
	sessionList sessions.SessionList,
	outputFormat string,
) (string, error) {
	switch strings.ToLower(outputFormat) {
	case "yaml":
		yamlBytes, err := yaml.Marshal(sessionList)
		if err != nil {
			return "", errors.Wrap(
				err,
				"error formatting output from list sessions operation",
			)
		}
		return string(yamlBytes), nil
	case "json":
		prettyJSON, err := json.MarshalIndent(sessionList, "", "  ")
		if err != nil {
			return "", errors.Wrap(
				err,
				"error formatting output from list sessions operation",
			)
		}
		return string(prettyJSON), nil
	}
	table := uitable.New()
	table.AddRow("SESSION", "USER", "ROLE", "STARTED", "EXPIRES")
	for _, session := range sessionList.Items {
		var started string
		if session.Created != nil {
			started = session.Created.Format(time.RFC3339)
		}
		table.AddRow(
			session.SessionID,
			session.UserID,
			session.Role,
			started,
			session.ExpiresAt.Format(time.RFC3339),
		)
	}
	return table.String(), nil
}

func formatSession(
	session sessions.Session,
	outputFormat string,
) (string, error) {
	switch strings.ToLower(outputFormat) {
	case "yaml":
		yamlBytes, err := yaml.Marshal(session)
		if err != nil {
			return "", errors.Wrap(
				err,
				"error formatting output from get session operation",
			)
		}
		return string(yamlBytes), nil
	case "json":
		prettyJSON, err := json.MarshalIndent(session, "", "  ")
		if err != nil {
			return "", errors.Wrap(
				err,
				"error formatting output from get session operation",
			)
		}
		return string(prettyJSON), nil
	}
	return formatSessionList(
		sessions.SessionList{Items: []sessions.Session{session}},
		outputFormat,
	)
}

func formatTokenExpiry(kind string, expires time.Time) string {
	return fmt.Sprintf(
		"%s expires %s.",
		kind,
		expires.Local().Format(time.RFC1123),
	)
}
