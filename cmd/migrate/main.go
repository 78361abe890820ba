package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/geocoder89/younginnovators/internal/config"
	"github.com/geocoder89/younginnovators/internal/db"
	"github.com/geocoder89/younginnovators/internal/observability"
)

const usage = "usage: migrate up|down|version|to <version>|force <version>"

func main() {
	cfg, err := config.Load()

	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.LogLevel)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	mg, err := db.NewMigrator(cfg.DBURL)

	if err != nil {
		log.Error("open migrator", "err", err)
		os.Exit(1)
	}

	defer mg.Close()

	command := os.Args[1]

	commands := map[string]func() error{
		"up":   mg.Up,
		"down": mg.Down,
		"version": func() error {
			v, dirty, err := mg.Version()
			if err != nil {
				return err
			}
			log.Info("schema version", "version", v, "dirty", dirty)
			return nil
		},
		"to": func() error {
			v, err := versionArg()
			if err != nil {
				return err
			}
			return mg.To(uint(v))
		},
		"force": func() error {
			v, err := versionArg()
			if err != nil {
				return err
			}
			return mg.Force(v)
		},
	}

	run, ok := commands[command]

	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s\n", command, usage)
		mg.Close()
		os.Exit(2)
	}

	if err := run(); err != nil {
		log.Error("migration failed", "command", command, "err", err)
		mg.Close()
		os.Exit(1)
	}

	log.Info("migration completed", "command", command)
}

func versionArg() (int, error) {
	if len(os.Args) < 3 {
		return 0, fmt.Errorf("a version number is required")
	}

	v, err := strconv.Atoi(os.Args[2])

	if err != nil || v < 0 {
		return 0, fmt.Errorf("version must be a non-negative integer, got %q", os.Args[2])
	}

	return v, nil
}
