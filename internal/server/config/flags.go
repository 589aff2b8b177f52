package config

import (
	"flag"
	"os"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/flagx"
)

// parseFlags overlays the command-line flags:
//
//	-a string   HTTP bind address
//	-g string   gRPC bind address
//	-d string   PostgreSQL DSN
//	-s string   JWT signing secret
//	-t int      session token validity, minutes
//	-l string   log level
//	-r string   Redis address, enables rate limiting
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-t", "-l", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT signing secret")
	validity := fs.Int("t", 0, "session token validity (in minutes)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *validity > 0 {
		config.JWTValidity = time.Duration(*validity) * time.Minute
	}
}
