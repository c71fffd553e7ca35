package secrets

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"phdhunt-engine/internal/config"
)

const (
	// “Service” groups the app's secrets in the OS keychain.
	KeyringService = "phdhunt"

	DBTokenAccount       = "phdhunt:libsql:token"
	RedisPasswordAccount = "phdhunt:redis:password"

	dbTokenEnv       = "PHDHUNT_LIBSQL_TOKEN"
	redisPasswordEnv = "PHDHUNT_REDIS_PASSWORD"
)

var ErrNotFound = errors.New("secret not found (set it in the keychain or via env)")

// Get reads account from the keychain, falling back to the env var.
func Get(account, env string) (string, error) {
	if v, err := keyring.Get(KeyringService, account); err == nil && strings.TrimSpace(v) != "" {
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v, nil
	}
	return "", ErrNotFound
}

func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// DBToken returns the libsql auth token, or "" when the config does not ask
// for one.
func DBToken(cfg config.Config) (string, error) {
	if cfg.Store.Driver != "libsql" || !cfg.Store.AuthTokenFromKeyring {
		return os.Getenv(dbTokenEnv), nil
	}
	return Get(DBTokenAccount, dbTokenEnv)
}

func RedisPassword(cfg config.Config) (string, error) {
	if cfg.Lock.Backend != "redis" || !cfg.Lock.RedisPasswordFromKeyring {
		return os.Getenv(redisPasswordEnv), nil
	}
	return Get(RedisPasswordAccount, redisPasswordEnv)
}
