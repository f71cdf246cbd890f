package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// parseEnv overlays environment variables. Blank values are ignored;
// malformed numbers and durations are errors.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	// PORT is what most platforms inject; HTTP_ADDRESS wins when both are set.
	if port := get("PORT"); port != "" {
		config.HTTPAddr = ":" + port
	}
	setString(&config.HTTPAddr, get("HTTP_ADDRESS"))
	setString(&config.GRPCAddr, get("GRPC_ADDRESS"))
	setString(&config.StoreDriver, get("STORE_DRIVER"))
	setString(&config.DatabaseDSN, get("DATABASE_DSN"))
	// NODE_ENV is honored for .env files carried over from the previous service.
	setString(&config.Environment, get("NODE_ENV"))
	setString(&config.Environment, get("APP_ENV"))
	setString(&config.LogLevel, get("LOG_LEVEL"))
	setString(&config.CryptoAlgorithm, get("CRYPTO_ALGORITHM"))
	setString(&config.CryptoSecurityKey, get("CRYPTO_SECURITY_KEY"))
	setString(&config.CryptoInitVector, get("CRYPTO_INIT_VECTOR"))
	setString(&config.AccessTokenSecret, get("ACCESS_TOKEN_SECRET"))
	setString(&config.AccessTokenAlgorithm, get("ACCESS_TOKEN_ALGORITHM"))
	setString(&config.PasswordHasher, get("HASH_ALGORITHM"))

	if v := get("ACCESS_TOKEN_LIFE"); v != "" {
		d, err := timex.ParseLifetime(v)
		if err != nil {
			return fmt.Errorf("ACCESS_TOKEN_LIFE: %w", err)
		}
		config.AccessTokenLife = d
	}
	if v := get("LOGIN_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOGIN_RATE_LIMIT: %w", err)
		}
		config.LoginRateLimit = n
	}
	if v := get("LOGIN_RATE_WINDOW"); v != "" {
		d, err := timex.ParseLifetime(v)
		if err != nil {
			return fmt.Errorf("LOGIN_RATE_WINDOW: %w", err)
		}
		config.LoginRateWindow = d
	}
	if v := get("HASH_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HASH_COST: %w", err)
		}
		config.HashCost = n
	}
	return nil
}
