package auth

import (
	"errors"
	"os"
	"strings"
)

// ErrReadOnly is returned when writing to a store that cannot persist tokens.
var ErrReadOnly = errors.New("auth store is read-only")

// EnvVars lists, per provider, the environment variables checked for an API
// token, in order of precedence.
var EnvVars = map[string][]string{
	"digitalocean": {"DO_TOKEN", "DIGITALOCEAN_TOKEN", "DIGITALOCEAN_ACCESS_TOKEN"},
	"hetzner":      {"HCLOUD_TOKEN"},
}

// EnvStore reads tokens from environment variables.
type EnvStore struct {
	lookup func(string) (string, bool)
}

// NewEnvStore returns an EnvStore. A nil lookup uses os.LookupEnv.
func NewEnvStore(lookup func(string) (string, bool)) *EnvStore {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvStore{lookup: lookup}
}

func (e *EnvStore) GetToken(provider string) (string, error) {
	for _, name := range EnvVars[NormalizeProvider(provider)] {
		if v, ok := e.lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", ErrTokenNotFound
}

func (e *EnvStore) SetToken(string, string) error { return ErrReadOnly }

func (e *EnvStore) DeleteToken(string) error { return ErrReadOnly }

// ChainStore reads from each store in turn and writes to the last one.
type ChainStore struct {
	stores []Store
}

func NewChainStore(stores ...Store) *ChainStore {
	return &ChainStore{stores: stores}
}

// GetToken returns the first token found. Errors other than
// ErrTokenNotFound stop the search.
func (c *ChainStore) GetToken(provider string) (string, error) {
	for _, s := range c.stores {
		token, err := s.GetToken(provider)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrTokenNotFound) {
			return "", err
		}
	}
	return "", ErrTokenNotFound
}

func (c *ChainStore) SetToken(provider string, token string) error {
	if len(c.stores) == 0 {
		return ErrReadOnly
	}
	return c.stores[len(c.stores)-1].SetToken(provider, token)
}

func (c *ChainStore) DeleteToken(provider string) error {
	if len(c.stores) == 0 {
		return ErrReadOnly
	}
	return c.stores[len(c.stores)-1].DeleteToken(provider)
}
