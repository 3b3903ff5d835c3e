package main

import (
	"fmt"
	"os"

	"reasondesk/cmd/migration/initialize"
	"reasondesk/cmd/migration/seed"
	"reasondesk/config"
	"reasondesk/internal/database"
	"reasondesk/internal/logger"
	"reasondesk/migrations"

	"github.com/joho/godotenv"
	migrate "github.com/rubenv/sql-migrate"
)

const usage = `usage: migration <command>

commands:
  up      apply all pending migrations, then initialize base data
  down    roll back the most recent migration
  status  list applied migrations
  seed    apply migrations, initialize, then load development fixtures
  reset   roll back every migration and apply them again`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(os.Args[1]); err != nil {
		os.Exit(1)
	}
}

func run(command string) error {
	_ = godotenv.Load()

	log := logger.New("migration").Function("run")

	cfg, err := config.InitConfig()
	if err != nil {
		return log.Err("failed to load config", err)
	}
	logger.Configure(cfg.Environment, cfg.LogLevel)

	db, err := database.New(cfg)
	if err != nil {
		return log.Err("failed to connect to database", err)
	}
	defer db.Close()

	sqlDB, err := db.SQL.DB()
	if err != nil {
		return log.Err("failed to get sql database", err)
	}

	dialect := dialectFor(cfg.DatabaseDriver)
	source := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations.FS,
		Root:       cfg.DatabaseDriver,
	}
	migrate.SetTable("schema_migrations")

	switch command {
	case "up", "seed":
		n, err := migrate.Exec(sqlDB, dialect, source, migrate.Up)
		if err != nil {
			return log.Err("failed to apply migrations", err)
		}
		log.Info("Applied migrations", "count", n)

		if err := initialize.InitializeTables(db.SQL, cfg, log); err != nil {
			return err
		}
		if command == "seed" {
			return seed.Seed(db.SQL, cfg, log)
		}
	case "down":
		n, err := migrate.ExecMax(sqlDB, dialect, source, migrate.Down, 1)
		if err != nil {
			return log.Err("failed to roll back migration", err)
		}
		log.Info("Rolled back migrations", "count", n)
	case "reset":
		if cfg.IsProduction() {
			return log.ErrMsg("refusing to reset a production database")
		}
		down, err := migrate.Exec(sqlDB, dialect, source, migrate.Down)
		if err != nil {
			return log.Err("failed to roll back migrations", err)
		}
		up, err := migrate.Exec(sqlDB, dialect, source, migrate.Up)
		if err != nil {
			return log.Err("failed to apply migrations", err)
		}
		log.Info("Reset schema", "rolledBack", down, "applied", up)

		if err := initialize.InitializeTables(db.SQL, cfg, log); err != nil {
			return err
		}
	case "status":
		records, err := migrate.GetMigrationRecords(sqlDB, dialect)
		if err != nil {
			return log.Err("failed to read migration records", err)
		}
		for _, record := range records {
			log.Info("Applied", "id", record.Id, "at", record.AppliedAt)
		}
		log.Info("Migration status", "applied", len(records))
	default:
		fmt.Fprintln(os.Stderr, usage)
		return log.Error("unknown command", "command", command)
	}

	return nil
}

func dialectFor(driver string) string {
	if driver == "postgres" {
		return "postgres"
	}
	return "sqlite3"
}
