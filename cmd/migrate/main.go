package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/packfinderz-cart/pkg/config"
	"github.com/angelmondragon/packfinderz-cart/pkg/db"
	"github.com/angelmondragon/packfinderz-cart/pkg/logger"
	"github.com/angelmondragon/packfinderz-cart/pkg/migrate"
	"github.com/joho/godotenv"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|current|version|create|validate")
	dir := flag.String("dir", "", "migrations root on disk; empty uses the migrations built into the binary (create/validate default to "+migrate.DefaultDir+")")
	driver := flag.String("driver", "", "database driver (postgres|sqlite); defaults to "+config.EnvDBDriver)
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	exitOn(context.Background(), logg, "load config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	if *driver == "" {
		*driver = cfg.DB.Driver
	}
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "driver": *driver})

	switch *cmd {
	case "create", "validate":
		root := *dir
		if root == "" {
			root = migrate.DefaultDir
		}
		target, err := migrate.DirFor(root, *driver)
		exitOn(ctx, logg, "resolve migrations dir", err)
		runSourceCommand(ctx, logg, *cmd, target, *name)
		return
	}

	cfg.DB.Driver = *driver
	client, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "connect database", err)
	defer client.Close()

	sqlDB, err := client.DB().DB()
	exitOn(ctx, logg, "extract sql.DB", err)

	m, err := migrate.New(sqlDB, *driver, *dir)
	exitOn(ctx, logg, "build migrator", err)
	ctx = logg.WithField(ctx, "dir", m.Dir())

	switch *cmd {
	case "up", "down", "status":
		exitOn(ctx, logg, "goose "+*cmd, m.Run(ctx, *cmd))
	case "current":
		v, err := m.Version()
		exitOn(ctx, logg, "read schema version", err)
		fmt.Println(v)
	case "version":
		if *version == "" {
			exitOn(ctx, logg, "migrate to version", fmt.Errorf("-version is required"))
		}
		exitOn(ctx, logg, "migrate to version", m.MigrateTo(ctx, *version))
	default:
		exitOn(ctx, logg, "parse flags", fmt.Errorf("unknown -cmd value %q", *cmd))
	}
	logg.Info(ctx, "migrate finished")
}

func runSourceCommand(ctx context.Context, logg *logger.Logger, cmd, dir, name string) {
	if cmd == "validate" {
		exitOn(ctx, logg, "validate migrations", migrate.ValidateDir(dir))
		fmt.Println("migration validation passed:", dir)
		return
	}
	if name == "" {
		exitOn(ctx, logg, "create migration", fmt.Errorf("-name is required"))
	}
	path, err := migrate.CreateSQLMigration(dir, name)
	exitOn(ctx, logg, "create migration", err)
	fmt.Println("created migration:", path)
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "step", step), "migrate failed", err)
	os.Exit(1)
}
