package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kidase-app/kidase-rules/internal/core/config"
	"github.com/kidase-app/kidase-rules/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func openDatabase() (*db.Queries, func(), error) {
	url := dbURL
	if url == "" {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		url = cfg.DatabaseURL
	}

	database, err := db.Open(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return queries, func() { database.Close() }, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	queries, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := db.MigrateUp(queries.DB()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Println("migrations applied")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	queries, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	statuses, err := db.MigrateStatus(queries.DB())
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	for _, status := range statuses {
		state := "pending"
		if status.Applied {
			state = "applied"
		}
		fmt.Printf("%-40s %s\n", status.ID, state)
	}
	return nil
}
