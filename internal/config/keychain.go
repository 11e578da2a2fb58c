package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	keychainService  = "papergpt"
	keychainTokenAcc = "api_token"
	apiTokenEnv      = "PAPERGPT_API_TOKEN"
)

// Keychain stores secrets outside the config backend.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

type platformKeychain struct{}

// NewKeychain returns the platform secret store: the login Keychain on macOS,
// a 0600 secrets.json under $XDG_DATA_HOME/papergpt elsewhere.
func NewKeychain() Keychain {
	return platformKeychain{}
}

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

// GetAPIToken returns the bearer token protecting the HTTP API.
// PAPERGPT_API_TOKEN wins; otherwise the token is read from the keychain,
// and generated and stored there on first use.
func GetAPIToken(kc Keychain) (string, error) {
	if v := os.Getenv(apiTokenEnv); v != "" {
		return v, nil
	}
	if v, err := kc.Get(keychainService, keychainTokenAcc); err == nil && v != "" {
		return v, nil
	}

	token := uuid.NewString()
	if err := kc.Set(keychainService, keychainTokenAcc, token); err != nil {
		return "", fmt.Errorf("storing api token: %w", err)
	}
	return token, nil
}
