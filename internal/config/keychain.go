package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	keychainService = "lifelens"
	apiTokenAccount = "api_token"
	apiTokenEnvVar  = "LIFELENS_API_TOKEN"
)

// Keychain stores secrets outside the config backend.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

// NewKeychain returns the platform secret store: macOS Keychain on darwin,
// a 0600 JSON file under $XDG_DATA_HOME elsewhere.
func NewKeychain() Keychain {
	return platformKeychain{}
}

// GetAPIToken returns the bearer token for the HTTP API. LIFELENS_API_TOKEN
// wins; otherwise the token is read from the keychain and generated on
// first use.
func GetAPIToken(kc Keychain) (string, error) {
	if tok := strings.TrimSpace(os.Getenv(apiTokenEnvVar)); tok != "" {
		return tok, nil
	}
	if tok, err := kc.Get(keychainService, apiTokenAccount); err == nil && tok != "" {
		return tok, nil
	}

	tok := uuid.New().String()
	if err := kc.Set(keychainService, apiTokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}
