package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"agendafit.app/internal/migrate"
)

func main() {
	logger := zap.Must(zap.NewDevelopment())
	defer func() { _ = logger.Sync() }()

	var (
		dsn     = flag.String("dsn", os.Getenv("DB_DSN"), "PostgreSQL DSN")
		verbose = flag.Bool("v", false, "verbose goose output")
	)
	flag.Parse()

	if *dsn == "" {
		logger.Fatal("missing DSN: provide via -dsn or DB_DSN")
	}
	if len(flag.Args()) == 0 {
		logger.Fatal("usage: migrate [up|down|status|version]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	var opts []migrate.Option
	if *verbose {
		opts = append(opts, migrate.WithVerbose())
	}
	mgr, err := migrate.NewManager(db, opts...)
	if err != nil {
		logger.Fatal("init migrations", zap.Error(err))
	}

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		if err == nil {
			logger.Info("migrations applied", zap.Strings("files", applied))
		}
	case "down":
		var rolled string
		rolled, err = mgr.Down(ctx)
		if err == nil {
			logger.Info("migration rolled back", zap.String("file", rolled))
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	case "version":
		var v int64
		v, err = mgr.Version(ctx)
		if err == nil {
			fmt.Println(v)
		}
	default:
		logger.Fatal("unknown command", zap.String("command", cmd))
	}
	if err != nil {
		logger.Fatal("migrate failed", zap.String("command", cmd), zap.Error(err))
	}
}
