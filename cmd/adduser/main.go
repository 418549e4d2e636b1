// Command adduser creates an application user, or replaces the permissions
// of an existing one with --overwrite.
//
//	adduser --username mifos --password secret --permissions ALL_FUNCTIONS
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"academic-service/internal/auth"
	"academic-service/internal/config"
	"academic-service/internal/db"
	"academic-service/internal/logger"
	"academic-service/internal/metrics"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
)

func main() {
	_ = godotenv.Load()

	var (
		username    = pflag.StringP("username", "u", "", "login name")
		password    = pflag.StringP("password", "p", "", "password (falls back to ADDUSER_PASSWORD)")
		permissions = pflag.StringSlice("permissions", []string{auth.PermissionAllFunctions}, "comma separated permission codes")
		overwrite   = pflag.Bool("overwrite", false, "replace permissions if the user already exists")
	)
	pflag.Parse()

	if *password == "" {
		*password = os.Getenv("ADDUSER_PASSWORD")
	}
	if strings.TrimSpace(*username) == "" || *password == "" {
		pflag.Usage()
		os.Exit(2)
	}

	if err := run(*username, *password, *permissions, *overwrite); err != nil {
		fmt.Fprintf(os.Stderr, "adduser: %v\n", err)
		os.Exit(1)
	}
}

func run(username, password string, permissions []string, overwrite bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(cfg.Env, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.New(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close(database)

	if err := db.RunMigrations(ctx, database, []any{(*auth.User)(nil)}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m, err := metrics.New(otel.Meter("adduser"))
	if err != nil {
		return err
	}

	service := auth.NewService(auth.NewRepository(database, m), auth.NewJWTManager(cfg.Auth))
	user, err := service.CreateUser(ctx, username, password, permissions, overwrite)
	if err != nil {
		return err
	}

	log.Info("user saved", "id", user.ID, "username", user.Username, "permissions", user.Permissions)
	return nil
}
