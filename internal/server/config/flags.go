package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

// parseFlags overlays the flags owned by the server. Key material is not
// accepted on the command line.
//
//	-a string   HTTP bind address
//	-g string   gRPC bind address
//	-s string   store driver (postgres, sqlite)
//	-d string   database DSN
//	-e string   environment (development, production)
//	-l string   log level
//	-t int      access token lifetime, minutes
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-s", "-d", "-e", "-l", "-t"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.StoreDriver, "s", config.StoreDriver, "store driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Environment, "e", config.Environment, "environment")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	lifetime := fs.Int("t", -1, "access token lifetime (in minutes)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *lifetime >= 0 {
		config.AccessTokenLife = time.Duration(*lifetime) * time.Minute
	}
	return nil
}
