package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/erp/purchasing/internal/infrastructure/bootstrap"
	"github.com/erp/purchasing/internal/infrastructure/migration"
	"go.uber.org/zap"
)

// action runs a parsed command against the migrations directory and, when the
// command needs one, an open migrator
type action func(env *migrateEnv) error

type migrateEnv struct {
	log      *zap.Logger
	out      io.Writer
	dir      string
	migrator *migration.Migrator
}

type command struct {
	usage   string
	summary string
	needsDB bool
	parse   func(args []string) (action, error)
}

var commands = map[string]command{
	"up": {
		usage: "up", summary: "Apply all pending migrations", needsDB: true,
		parse: noArgs(func(env *migrateEnv) error { return env.migrator.Up() }),
	},
	"down": {
		usage: "down", summary: "Roll back all migrations", needsDB: true,
		parse: noArgs(func(env *migrateEnv) error { return env.migrator.Down() }),
	},
	"step": {
		usage: "step <n>", summary: "Apply n migrations (negative rolls back)", needsDB: true,
		parse: func(args []string) (action, error) {
			n, err := intArg(args, "step count")
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, bootstrap.Usagef("step count must not be zero")
			}
			return func(env *migrateEnv) error { return env.migrator.Steps(n) }, nil
		},
	},
	"version": {
		usage: "version", summary: "Show the applied schema version", needsDB: true,
		parse: noArgs(printVersion),
	},
	"force": {
		usage: "force <version>", summary: "Set the version without migrating, to clear a dirty state", needsDB: true,
		parse: func(args []string) (action, error) {
			v, err := intArg(args, "version")
			if err != nil {
				return nil, err
			}
			return func(env *migrateEnv) error { return env.migrator.Force(v) }, nil
		},
	},
	"create": {
		usage: "create <name> [description]", summary: "Write a new up/down migration pair",
		parse: func(args []string) (action, error) {
			if len(args) == 0 || len(args) > 2 {
				return nil, bootstrap.Usagef("create takes a name and an optional description")
			}
			name, description := args[0], ""
			if len(args) == 2 {
				description = args[1]
			}
			return func(env *migrateEnv) error {
				mf, err := migration.CreateMigration(env.dir, name, description, time.Now().UTC())
				if err != nil {
					return err
				}
				env.log.Info("Migration created",
					zap.String("version", mf.Version),
					zap.String("up_file", mf.UpPath),
					zap.String("down_file", mf.DownPath),
				)
				return nil
			}, nil
		},
	},
	"list": {
		usage: "list", summary: "List migration files",
		parse: noArgs(listMigrations),
	},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(argv []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	path := fs.String("path", "", "Migrations directory (default: ./migrations)")
	logLevel := fs.String("log-level", "", "Log level override (default: log.level from config)")
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { printUsage(os.Stderr) }
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return bootstrap.ExitOK
		}
		return bootstrap.ExitUsage
	}

	args := fs.Args()
	if len(args) == 0 {
		printUsage(os.Stderr)
		return bootstrap.ExitUsage
	}
	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		printUsage(os.Stderr)
		return bootstrap.ExitUsage
	}
	act, err := cmd.parse(args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\nusage: migrate %s\n", err, cmd.usage)
		return bootstrap.ExitCode(err)
	}

	rt, err := bootstrap.Load(bootstrap.Options{LogLevel: *logLevel, LogFormat: "console", TimeFormat: time.DateTime})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return bootstrap.ExitFailure
	}
	defer rt.Sync()
	log := rt.Logger.With(zap.String("command", name))

	dir, err := migration.ResolveDir(*path)
	if err != nil {
		log.Error("Invalid migrations path", zap.Error(err))
		return bootstrap.ExitFailure
	}
	env := &migrateEnv{log: log, out: stdout, dir: dir}
	log.Debug("Migration CLI started", zap.String("migrations_path", dir))

	if cmd.needsDB {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		db, err := bootstrap.OpenSQL(ctx, rt.Config.Database)
		if err != nil {
			log.Error("Database unavailable", zap.Error(err))
			return bootstrap.ExitFailure
		}
		defer db.Close()

		m, err := migration.New(db, dir, log)
		if err != nil {
			log.Error("Failed to create migrator", zap.Error(err))
			return bootstrap.ExitFailure
		}
		defer func() {
			if err := m.Close(); err != nil {
				log.Warn("Error closing migrator", zap.Error(err))
			}
		}()
		env.migrator = m
	}

	if err := act(env); err != nil {
		log.Error("Migration command failed", zap.Error(err))
		return bootstrap.ExitCode(err)
	}
	return bootstrap.ExitOK
}

func noArgs(a action) func(args []string) (action, error) {
	return func(args []string) (action, error) {
		if len(args) != 0 {
			return nil, bootstrap.Usagef("unexpected arguments %q", args)
		}
		return a, nil
	}
}

func intArg(args []string, what string) (int, error) {
	if len(args) != 1 {
		return 0, bootstrap.Usagef("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, bootstrap.Usagef("invalid %s %q", what, args[0])
	}
	return n, nil
}

func printVersion(env *migrateEnv) error {
	version, dirty, err := env.migrator.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		env.log.Info("No migrations applied")
		return nil
	}
	env.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func listMigrations(env *migrateEnv) error {
	names, err := migration.ListMigrations(env.dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		env.log.Warn("No migrations found", zap.String("migrations_path", env.dir))
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(env.out, n)
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Purchasing Database Migration Tool

Usage:
  migrate [-path dir] [-log-level level] <command> [arguments]

Commands:
`)
	for _, name := range []string{"up", "down", "step", "version", "force", "create", "list"} {
		c := commands[name]
		fmt.Fprintf(w, "  %-28s %s\n", c.usage, c.summary)
	}
	fmt.Fprint(w, `
Database settings come from config.toml and PURCHASING_DATABASE_* environment variables.
`)
}
