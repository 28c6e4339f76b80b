package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

type options struct {
	cmd      string
	dir      string
	name     string
	version  string
	embedded bool
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|reset|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name, required by create")
	flag.StringVar(&opts.version, "version", "", "target version YYYYMMDDHHMMSS, required by version")
	flag.BoolVar(&opts.embedded, "embedded", false, "use the migrations compiled into the binary instead of -dir")
	flag.Parse()
	return opts
}

func main() {
	_ = godotenv.Load()
	opts := parseFlags()

	// create and validate only touch the filesystem.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			exit("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			exit("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			exit("validate %s: %v", opts.dir, err)
		}
		fmt.Println("migrations in", opts.dir, "are valid")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		exit("load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "storefront-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"cmd":      opts.cmd,
		"embedded": opts.embedded,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "connect database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "unwrap sql database", err)
		os.Exit(1)
	}

	if err := execute(ctx, sqlDB, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

func execute(ctx context.Context, sqlDB *sql.DB, opts options) error {
	switch opts.cmd {
	case "up", "down", "status", "reset":
		if opts.embedded {
			return migrate.RunEmbedded(ctx, sqlDB, opts.cmd)
		}
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd %q", opts.cmd)
	}
}

func exit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
