package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Absent fields leave
// the current value alone.
type JsonConfig struct {
	HTTPAddr             string         `json:"http_address"`
	GRPCAddr             string         `json:"grpc_address"`
	StoreDriver          string         `json:"store_driver"`
	DatabaseDSN          string         `json:"database_dsn"`
	Environment          string         `json:"environment"`
	LogLevel             string         `json:"log_level"`
	CryptoAlgorithm      string         `json:"crypto_algorithm"`
	CryptoSecurityKey    string         `json:"crypto_security_key"`
	CryptoInitVector     string         `json:"crypto_init_vector"`
	AccessTokenSecret    string         `json:"access_token_secret"`
	AccessTokenAlgorithm string         `json:"access_token_algorithm"`
	AccessTokenLife      timex.Duration `json:"access_token_life"`
	PasswordHasher       string         `json:"password_hasher"`
	HashCost             int            `json:"hash_cost"`
	LoginRateLimit       *int           `json:"login_rate_limit"`
	LoginRateWindow      timex.Duration `json:"login_rate_window"`
}

// parseJSON overlays the file named by -c / -config, if any.
func parseJSON(config *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.StoreDriver, c.StoreDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.Environment, c.Environment)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.CryptoAlgorithm, c.CryptoAlgorithm)
	setString(&config.CryptoSecurityKey, c.CryptoSecurityKey)
	setString(&config.CryptoInitVector, c.CryptoInitVector)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.AccessTokenAlgorithm, c.AccessTokenAlgorithm)
	setString(&config.PasswordHasher, c.PasswordHasher)
	if c.AccessTokenLife.Duration != 0 {
		config.AccessTokenLife = c.AccessTokenLife.Duration
	}
	if c.HashCost != 0 {
		config.HashCost = c.HashCost
	}
	if c.LoginRateLimit != nil {
		config.LoginRateLimit = *c.LoginRateLimit
	}
	if c.LoginRateWindow.Duration != 0 {
		config.LoginRateWindow = c.LoginRateWindow.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
