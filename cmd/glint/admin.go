package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/glintapp/glint-core/internal/adapter/postgres"
	"github.com/glintapp/glint-core/internal/config"
)

// runCommand dispatches CLI subcommands. Returning an error exits non-zero.
func runCommand(cmd string, args []string) error {
	switch cmd {
	case "admin":
		return runAdmin(args)
	case "migrate":
		return runMigrate(args)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: glint [command]

  (no command)            start the server
  admin create-key <name> issue a new API key
  migrate up              apply pending migrations
  migrate down [steps]    roll back migrations`)
}

func runAdmin(args []string) error {
	if len(args) < 1 {
		return errors.New("admin: subcommand required")
	}
	switch args[0] {
	case "create-key":
		if len(args) < 2 {
			return errors.New("admin create-key: name required")
		}
		return createKey(args[1])
	default:
		return fmt.Errorf("admin: unknown subcommand %q", args[0])
	}
}

// createKey issues a new API key. The secret is read from the terminal, or
// generated when stdin is not a terminal. Only the bcrypt hash is stored;
// the printed token is shown once.
func createKey(name string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	var secret string
	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(os.Stderr, "Secret (empty to generate): ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}
		secret = string(raw)
	}
	if secret == "" {
		secret = uuid.NewString()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}

	id := uuid.NewString()
	store := postgres.NewStore(pool)
	if err := store.CreateAPIKey(ctx, id, name, string(hash)); err != nil {
		return err
	}

	fmt.Printf("api key %q created\ntoken: %s.%s\n", name, id, secret)
	return nil
}

func runMigrate(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	dir := "up"
	if len(args) > 0 {
		dir = args[0]
	}

	switch dir {
	case "up":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return errors.New("migrate down: steps must be a positive integer")
			}
			steps = n
		}
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, steps); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Println("migrations rolled back")
		return nil
	default:
		return fmt.Errorf("migrate: unknown direction %q", dir)
	}
}
