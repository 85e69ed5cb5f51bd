package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/database"
)

// schemaMigrator is the part of database.Migrator the commands drive.
type schemaMigrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// opener connects a migrator for the loaded configuration.
type opener func(cfg *config.AppConfig) (schemaMigrator, error)

func openMigrator(cfg *config.AppConfig) (schemaMigrator, error) {
	m, err := database.NewMigrator(cfg.Postgres.DSN())
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewRootCmd creates the migrate CLI with its up, down and version subcommands.
func NewRootCmd(open opener) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the auth database schema",
		Long:         `Apply, roll back or inspect the embedded PostgreSQL migrations of the auth service.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	withMigrator := func(run func(cmd *cobra.Command, m schemaMigrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			m, err := open(cfg)
			if err != nil {
				return fmt.Errorf("init migrator: %w", err)
			}
			defer func() {
				if err := m.Close(); err != nil {
					cmd.PrintErrf("close migrator: %v\n", err)
				}
			}()

			if err := run(cmd, m); err != nil {
				return err
			}
			return printVersion(cmd, m)
		}
	}

	cmd.AddCommand(newUpCmd(withMigrator))
	cmd.AddCommand(newDownCmd(withMigrator))
	cmd.AddCommand(newVersionCmd(withMigrator))

	return cmd
}

type migratorRunner func(run func(cmd *cobra.Command, m schemaMigrator) error) func(*cobra.Command, []string) error

func newUpCmd(with migratorRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, m schemaMigrator) error {
			cmd.Println("Applying migrations...")
			if err := m.Up(); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			return nil
		}),
	}
}

func newDownCmd(with migratorRunner) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Long:  `Roll back every migration. This drops the auth schema and all account data.`,
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if !confirmed {
				return errors.New("refusing to drop the auth schema without --yes")
			}
			return nil
		},
		RunE: with(func(cmd *cobra.Command, m schemaMigrator) error {
			cmd.Println("Rolling back migrations...")
			if err := m.Down(); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm that all auth data may be dropped")

	return cmd
}

func newVersionCmd(with migratorRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: with(func(*cobra.Command, schemaMigrator) error {
			return nil
		}),
	}
}

func printVersion(cmd *cobra.Command, m schemaMigrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	cmd.Printf("schema version %d (dirty=%t)\n", version, dirty)
	return nil
}
