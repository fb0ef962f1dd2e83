// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgslice/pgslice/cmd/flags"
)

// Version is the pgslice version.
var Version = "development"

func init() {
	viper.SetEnvPrefix("PGSLICE")
	viper.AutomaticEnv()

	flags.PgConnectionFlags(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:          "pgslice",
	SilenceUsage: true,
	Version:      Version,
}

// openPool opens a connection pool against the configured Postgres URL. It
// is shared by every subcommand that needs a live database connection:
// dump's snapshot pool, restore's session providers, and schema
// introspection all draw from the same pool.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, flags.PostgresURL())
}

// Execute runs the root command.
func Execute() error {
	rootCmd.AddCommand(dumpCmd())
	rootCmd.AddCommand(restoreCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(transformFieldCmd())

	return rootCmd.Execute()
}
