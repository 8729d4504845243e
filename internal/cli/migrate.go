/*
Package cli implements the marketctl subcommands.
*/
package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"marketplace-assistant/internal/config"
)

// NewMigrateCmd creates the 'migrate' command for the response cache schema.
func NewMigrateCmd() *cobra.Command {
	var databaseURL string
	var migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate [up|down|version]",
		Short: "Apply or roll back database migrations",
		Long: `Run the SQL migrations in the migrations directory against PostgreSQL.
The database URL defaults to the one built from MARKET_ASSIST_DATABASE_* settings.`,
		Example: `  marketctl migrate up
  marketctl migrate down 1
  marketctl migrate version --database-url postgres://localhost:5432/marketplace?sslmode=disable`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 0
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid step count %q", args[1])
				}
				steps = n
			}

			if databaseURL == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				databaseURL = cfg.Database.URL()
			}

			return runMigrate(cmd.OutOrStdout(), args[0], steps, databaseURL, migrationsPath)
		},
	}

	cmd.Flags().StringVarP(&databaseURL, "database-url", "d", "", "PostgreSQL connection URL")
	cmd.Flags().StringVarP(&migrationsPath, "migrations-path", "m", "migrations", "Path to migrations")

	return cmd
}

// runMigrate executes one migration direction. steps limits up/down when positive.
func runMigrate(out io.Writer, direction string, steps int, databaseURL, migrationsPath string) error {
	switch direction {
	case "up", "down", "version":
	default:
		return fmt.Errorf("unknown migrate direction %q", direction)
	}

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	switch direction {
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Fprintln(out, "no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		fmt.Fprintf(out, "version %d (dirty: %t)\n", version, dirty)
		return nil
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintln(out, "no migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s failed: %w", direction, err)
	}

	fmt.Fprintf(out, "migrations %s applied successfully\n", direction)
	return nil
}
