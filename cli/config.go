package main

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path"
	"time"

	"github.com/krancour/identity/internal/file"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// config is the session the CLI is currently logged in with.
type config struct {
	APIAddress          string    `json:"apiAddress"`
	UserID              string    `json:"userID"`
	SessionID           string    `json:"sessionID"`
	AccessToken         string    `json:"accessToken"`
	AccessTokenExpires  time.Time `json:"accessTokenExpires"`
	RefreshToken        string    `json:"refreshToken"`
	RefreshTokenExpires time.Time `json:"refreshTokenExpires"`
}

func getConfig() (*config, error) {
	identityHome, err := getIdentityHome()
	if err != nil {
		return nil, errors.Wrapf(err, "error finding identity home")
	}
	identityConfigFile := path.Join(identityHome, "config")
	if !file.Exists(identityConfigFile) {
		return nil, errors.Errorf(
			"no identity configuration was found at %s; please use "+
				"`identity login` to continue\n",
			identityConfigFile,
		)
	}

	configBytes, err := ioutil.ReadFile(identityConfigFile)
	if err != nil {
		return nil, errors.Wrapf(
			err,
			"error reading identity config file at %s",
			identityConfigFile,
		)
	}

	config := &config{}
	if err := json.Unmarshal(configBytes, config); err != nil {
		return nil, errors.Wrapf(
			err,
			"error parsing identity config file at %s",
			identityConfigFile,
		)
	}

	return config, nil
}

func saveConfig(config *config) error {
	identityHome, err := getIdentityHome()
	if err != nil {
		return errors.Wrapf(err, "error finding identity home")
	}
	if _, err = os.Stat(identityHome); err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrapf(
				err,
				"error checking for existence of identity home at %s",
				identityHome,
			)
		}
		if err = os.MkdirAll(identityHome, 0700); err != nil {
			return errors.Wrapf(
				err,
				"error creating identity home at %s",
				identityHome,
			)
		}
	}
	identityConfigFile := path.Join(identityHome, "config")

	configBytes, err := json.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}
	// The file holds a refresh token, so only the owner may read it
	if err :=
		ioutil.WriteFile(identityConfigFile, configBytes, 0600); err != nil {
		return errors.Wrapf(err, "error writing to %s", identityConfigFile)
	}
	return nil
}

func deleteConfig() error {
	identityHome, err := getIdentityHome()
	if err != nil {
		return errors.Wrapf(err, "error finding identity home")
	}
	identityConfigFile := path.Join(identityHome, "config")

	if err := os.Remove(identityConfigFile); err != nil {
		return errors.Wrap(err, "error deleting configuration")
	}

	return nil
}

func getIdentityHome() (string, error) {
	homeDir, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "error locating user's home directory")
	}

	return path.Join(homeDir, ".identity"), nil
}
