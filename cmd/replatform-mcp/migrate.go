package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Strob0t/replatform-mcp/internal/adapter/postgres"
)

var errNoDatabase = errors.New("postgres.dsn (DATABASE_URL) is not configured")

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the agent event database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openMigrator()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			n, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", n); err != nil {
				return err
			}
			return printVersion(cmd, m)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the last migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid steps %q", args[0])
				}
				steps = n
			}
			m, err := openMigrator()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			n, err := m.Down(cmd.Context(), steps)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migrations\n", n); err != nil {
				return err
			}
			return printVersion(cmd, m)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List embedded migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openMigrator()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			states, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, st := range states {
				applied := "pending"
				if st.Applied {
					applied = st.AppliedAt.UTC().Format(time.RFC3339)
				}
				if _, err := fmt.Fprintf(out, "%05d %-32s %s\n", st.Version, st.Name, applied); err != nil {
					return err
				}
			}
			return printVersion(cmd, m)
		},
	})

	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete persisted events older than --older-than",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logCloser, err := loadConfig()
			if err != nil {
				return err
			}
			defer logCloser.Close()
			if cfg.Postgres.DSN == "" {
				return errNoDatabase
			}
			pool, err := postgres.NewPool(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := postgres.NewEventStore(pool).Purge(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d events\n", n)
			return err
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff")
	cmd.AddCommand(purge)

	return cmd
}

func databaseURL() (string, error) {
	cfg, logCloser, err := loadConfig()
	if err != nil {
		return "", err
	}
	logCloser.Close()
	if cfg.Postgres.DSN == "" {
		return "", errNoDatabase
	}
	return cfg.Postgres.DSN, nil
}

func openMigrator() (*postgres.Migrator, error) {
	dsn, err := databaseURL()
	if err != nil {
		return nil, err
	}
	return postgres.NewMigrator(dsn)
}

func printVersion(cmd *cobra.Command, m *postgres.Migrator) error {
	v, err := m.Version(cmd.Context())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "migration version %d\n", v)
	return err
}
