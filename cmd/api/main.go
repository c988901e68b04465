package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is set via ldflags during build.
var Version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "verify-api",
		Usage:   "Email and phone verification service",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Value:   ".env",
				Usage:   "Optional dotenv file loaded before reading the environment",
				Sources: cli.EnvVars("ENV_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the purge schedule",
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "Create tables (DynamoDB) or apply migrations (Postgres)",
				Action: runMigrate,
			},
			{
				Name:   "purge",
				Usage:  "Delete expired, unverified verification records once",
				Action: runPurge,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
