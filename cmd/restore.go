// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgslice/pgslice/cmd/flags"
	"github.com/pgslice/pgslice/pkg/archive"
	"github.com/pgslice/pgslice/pkg/progress"
	"github.com/pgslice/pgslice/pkg/restore"
)

func restoreCmd() *cobra.Command {
	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a slice archive into a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd.Context())
		},
	}

	flags.RestoreFlags(restoreCmd)
	return restoreCmd
}

func runRestore(ctx context.Context) error {
	if flags.Input() == "" {
		return fmt.Errorf("--input is required")
	}

	f, err := os.Open(flags.Input())
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("statting archive: %w", err)
	}

	reader, err := archive.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}

	pool, err := openPool(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	jobs := flags.Jobs()
	if jobs <= 0 {
		jobs = 1
	}

	opts := restore.Options{Parallelism: jobs, Transaction: flags.Transaction(), Logger: progress.NewLogger()}

	if !flags.Transaction() {
		engine := restore.New(reader, restore.NewPoolProvider(pool), pool, opts)
		return engine.Run(ctx)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	engine := restore.New(reader, restore.NewTransactionProvider(conn.Conn(), tx), pool, opts)
	if err := engine.Run(ctx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	return tx.Commit(ctx)
}
