package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kidase-app/kidase-rules/internal/core/api"
	"github.com/kidase-app/kidase-rules/internal/core/config"
	"github.com/kidase-app/kidase-rules/internal/core/db"
	"github.com/kidase-app/kidase-rules/internal/core/server"
	"github.com/kidase-app/kidase-rules/internal/core/store"
	"github.com/kidase-app/kidase-rules/internal/liturgy"
	"github.com/kidase-app/kidase-rules/internal/rules"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rule evaluation HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "HTTP server host")
	serveCmd.Flags().Int("port", 0, "HTTP server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logger, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Port = port
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	applied, err := db.MigrationsApplied(database)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	if !applied {
		return fmt.Errorf("migrations not applied - run 'kidase-rules migrate' first")
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	location, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	engine := rules.NewEngine(rules.Options{
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		Logger:    logger,
	})
	builder := liturgy.NewBuilder(liturgy.BuilderOptions{
		Clock:  func() time.Time { return time.Now().In(location) },
		Logger: logger,
	})

	service, err := api.NewService(api.Deps{
		Engine:        engine,
		Builder:       builder,
		Rules:         store.NewRuleStore(queries, engine),
		Readings:      store.NewReadingStore(queries),
		Presentations: store.NewPresentationStore(queries),
		Config:        cfg,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	httpServer, err := server.NewHTTPServer(cfg, service)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting kidase-rules API",
		"version", Version,
		"host", cfg.Host,
		"port", cfg.Port,
		"timezone", cfg.Timezone)
	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		return httpServer.Shutdown(ctx)
	}
}
