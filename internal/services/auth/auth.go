package auth

import (
	"errors"

	"nathanbeddoewebdev/snapcycle/internal/util"
)

const ServiceName = "snapcycle"

var ErrTokenNotFound = errors.New("auth token not found")

type Store interface {
	SetToken(provider string, token string) error
	GetToken(provider string) (string, error)
	DeleteToken(provider string) error
}

// DefaultStore returns the store used by commands: provider tokens from the
// environment take precedence over the OS keychain.
func DefaultStore() Store {
	return NewChainStore(NewEnvStore(nil), NewKeyringStore(ServiceName))
}

// NormalizeProvider normalizes a provider name for consistent key lookup.
func NormalizeProvider(provider string) string {
	return util.NormalizeKey(provider)
}
