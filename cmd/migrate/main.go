package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"learnhub-billing/internal/config"
	"learnhub-billing/internal/infra/db/migrations"
)

var (
	Version = "dev"

	cfgPath string
	dbURL   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the learnhub-billing database schema",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbURL, "database-url", "", "overrides database.url")

	rootCmd.AddCommand(upCmd(), downCmd(), versionCmd(), forceCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dsn avoids LoadConfig so the tool runs without the service's other required settings.
func dsn() (string, error) {
	if dbURL != "" {
		return dbURL, nil
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v, nil
	}
	cfg, err := config.LoadConfig(cfgPath, true)
	if err != nil {
		return "", fmt.Errorf("no --database-url or DATABASE_URL, and config failed: %w", err)
	}
	return cfg.Database.URL, nil
}

func open() (*migrate.Migrate, error) {
	d, err := dsn()
	if err != nil {
		return nil, err
	}
	return migrations.New(d)
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dsn()
			if err != nil {
				return err
			}
			if err := migrations.Up(d); err != nil {
				return err
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
}

func downCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (one step by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()
			if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return err
			}
			fmt.Printf("rolled back %d step(s)\n", steps)
			return nil
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "number of migrations to roll back")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()
			v, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("no migrations applied")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("version %d (dirty=%t)\n", v, dirty)
			return nil
		},
	}
}

func forceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force [version]",
		Short: "Mark a version as applied after fixing a failed migration by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("version: %w", err)
			}
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()
			return m.Force(v)
		},
	}
}
