// Command createsuperuser bootstraps an administrator account.
//
// It reads the same configuration as the server (.env, then environment),
// so it writes to the same DB_PATH:
//
//	go run ./cmd/createsuperuser -email admin@example.com -password s3cret
//
// The password may also come from SUPERUSER_PASSWORD to keep it out of
// shell history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/auth"
	"github.com/sakif/flashcards/internal/config"
	"github.com/sakif/flashcards/internal/repository/sqlite"
	"github.com/sakif/flashcards/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "createsuperuser:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	email := fs.String("email", "", "email address (required)")
	password := fs.String("password", "", "password (default $SUPERUSER_PASSWORD)")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	dbPath := fs.String("db", "", "database path (default $DB_PATH)")
	staff := fs.Bool("staff", true, "mark the account as staff (a superuser must be staff)")
	superuser := fs.Bool("superuser", true, "mark the account as superuser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// === 1. CONFIGURATION ===
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *password == "" {
		*password = os.Getenv("SUPERUSER_PASSWORD")
	}
	if *password == "" {
		return errors.New("a password is required (-password or SUPERUSER_PASSWORD)")
	}
	logger := cfg.NewLogger()

	// === 2. DATABASE ===
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// === 3. CREATE THE ACCOUNT ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}
	svc := service.NewAuthService(db, tokens, auth.NewPasswordService(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := svc.CreateSuperuser(ctx, service.RegisterInput{
		Email:     *email,
		Password:  password,
		FirstName: *firstName,
		LastName:  *lastName,
	}, service.SuperuserOptions{IsStaff: staff, IsSuperuser: superuser})
	if err != nil {
		return describe(err)
	}

	logger.Info("superuser ready", slog.Int64("user_id", user.ID), slog.String("email", user.Email))
	return nil
}

// describe flattens field errors into one readable line.
func describe(err error) error {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	fields := appErr.FieldErrors()
	if len(fields) == 0 {
		return err
	}
	parts := make([]string, 0, len(fields))
	for field, msg := range fields {
		parts = append(parts, field+": "+msg)
	}
	slices.Sort(parts)
	return errors.New(strings.Join(parts, "; "))
}
