package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name (create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// create and validate work on files only and need no config
	switch *cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name, time.Now())
		exitOn(ctx, logg, "create migration", err)
		fmt.Println("created migration:", path)
		return
	case "validate":
		files, err := migrate.Files(*dir)
		exitOn(ctx, logg, "load migrations", err)
		exitOn(ctx, logg, "validate migrations", migrate.Validate(files))
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	exitOn(ctx, logg, "load config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "env": cfg.App.Env})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "connect database", err)
	defer dbClient.Close()
	if !dbClient.IsPostgres() {
		exitOn(ctx, logg, "open database", fmt.Errorf("goose migrations target postgres; sqlite is migrated from models on startup"))
	}

	sqlDB, err := dbClient.DB().DB()
	exitOn(ctx, logg, "sql database", err)
	files, err := migrate.Files(*dir)
	exitOn(ctx, logg, "load migrations", err)
	runner, err := migrate.NewRunner(sqlDB, files, logg)
	exitOn(ctx, logg, "migration runner", err)

	switch *cmd {
	case "up":
		exitOn(ctx, logg, "migrate up", runner.Up(ctx))
	case "down":
		exitOn(ctx, logg, "migrate down", runner.Down(ctx))
	case "version":
		if *version == "" {
			exitOn(ctx, logg, "migrate to version", fmt.Errorf("-version is required"))
		}
		exitOn(ctx, logg, "migrate to version", runner.To(ctx, *version))
	case "status":
		states, err := runner.Status(ctx)
		exitOn(ctx, logg, "migration status", err)
		printStatus(states)
	default:
		exitOn(ctx, logg, "parse flags", fmt.Errorf("unknown -cmd %q", *cmd))
	}
}

func printStatus(states []migrate.State) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, s := range states {
		state, at := "pending", "-"
		if s.Applied {
			state, at = "applied", s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, state, at, s.Path)
	}
	_ = w.Flush()
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, step+" failed", err)
	os.Exit(1)
}
