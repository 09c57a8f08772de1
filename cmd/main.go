package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/KAsare1/Gigstage-server/cmd/api"
	"github.com/KAsare1/Gigstage-server/cmd/config"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/KAsare1/Gigstage-server/db"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Sync()

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if err := cfg.Validate(command == "serve"); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		err = withDatabase(cfg, logger, func(conn *gorm.DB) error { return startServer(ctx, cfg, conn, logger) })
	case "worker":
		err = withDatabase(cfg, logger, func(conn *gorm.DB) error { return runWorker(ctx, cfg, conn, logger) })
	case "migrate":
		err = withDatabase(cfg, logger, func(conn *gorm.DB) error { return runMigrations(conn, logger) })
	case "clear-db":
		err = withDatabase(cfg, logger, func(conn *gorm.DB) error { return runDatabaseClear(conn, logger) })
	default:
		logger.Fatal("unknown command", zap.String("command", command))
	}
	if err != nil {
		logger.Fatal("command failed", zap.String("command", command), zap.Error(err))
	}
}

func withDatabase(cfg *config.Config, logger *zap.Logger, fn func(*gorm.DB) error) error {
	conn, err := db.NewPSQLStorage(cfg.DBURL)
	if err != nil {
		return fmt.Errorf("database initialization: %w", err)
	}
	defer func() {
		sqlDB, _ := conn.DB()
		sqlDB.Close()
		logger.Info("database connection closed")
	}()
	logger.Info("connected to the database")
	return fn(conn)
}

func startServer(ctx context.Context, cfg *config.Config, conn *gorm.DB, logger *zap.Logger) error {
	queue := asynq.NewClient(redisOpt(cfg))
	defer queue.Close()

	return api.NewApiServer(cfg, conn, queue, logger).Run(ctx)
}

func runMigrations(conn *gorm.DB, logger *zap.Logger) error {
	logger.Info("starting database migrations")
	for _, t := range db.Tables() {
		if err := conn.AutoMigrate(t.Model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", t.Name, err)
		}
		logger.Info("table migrated", zap.String("table", t.Name))
	}
	logger.Info("migrations completed successfully")
	return nil
}

func runDatabaseClear(conn *gorm.DB, logger *zap.Logger) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	confirmation, _ := reader.ReadString('\n')
	if strings.TrimSpace(confirmation) != "yes" {
		logger.Info("database clearing cancelled")
		return nil
	}

	fmt.Print("Enter table names to clear (comma separated) or leave blank to clear all: ")
	names, _ := reader.ReadString('\n')

	tables, unknown := selectTables(strings.TrimSpace(names))
	for _, name := range unknown {
		logger.Warn("unknown table", zap.String("table", name))
	}

	// Dependents first.
	for i := len(tables) - 1; i >= 0; i-- {
		t := tables[i]
		if err := conn.Migrator().DropTable(t.Model); err != nil {
			logger.Warn("drop table failed", zap.String("table", t.Name), zap.Error(err))
			continue
		}
		logger.Info("table dropped", zap.String("table", t.Name))
	}
	logger.Info("database cleared successfully")
	return nil
}

// selectTables resolves a comma separated list of table names. An empty
// list selects every table.
func selectTables(names string) ([]db.Table, []string) {
	all := db.Tables()
	if names == "" {
		return all, nil
	}

	byName := make(map[string]db.Table, len(all))
	for _, t := range all {
		byName[strings.ToLower(t.Name)] = t
	}

	var selected []db.Table
	var unknown []string
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if t, ok := byName[strings.ToLower(name)]; ok {
			selected = append(selected, t)
		} else if name != "" {
			unknown = append(unknown, name)
		}
	}
	return selected, unknown
}
