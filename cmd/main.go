package main

import (
	"context"
	"fmt"
	"os"
	"procurement/internal/app"
	"procurement/internal/config"
	"procurement/internal/repository"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "procurement",
		Short:        "Tender and bid management service",
		SilenceUsage: true,
		RunE:         runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the expiry sweeper",
			RunE:  runServe,
		},
		newMigrateCmd(),
		&cobra.Command{
			Use:   "sweep",
			Short: "Close published tenders whose award window has elapsed, then exit",
			RunE:  runSweep,
		},
	)

	return root
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := app.NewApp()
	if err != nil {
		return err
	}

	a.Run()
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := app.NewApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Sweep(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "closed %d tender(s)\n", n)
	return nil
}

func newMigrateCmd() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert database migrations",
	}

	migrate.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRepository(cmd.Context(), (*repository.Repository).MigrateUp)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert all migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRepository(cmd.Context(), (*repository.Repository).MigrateDown)
			},
		},
	)

	return migrate
}

// withRepository opens the database without automatic migrations and runs fn against it.
func withRepository(ctx context.Context, fn func(*repository.Repository) error) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	cfg.AutoMigrateUp = "false"
	cfg.AutoMigrateDown = "false"

	repo, err := repository.NewRepository(nil, &cfg.PostgresConfig)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err = repo.Ping(ctx); err != nil {
		return err
	}
	return fn(repo)
}
