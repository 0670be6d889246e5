// Command seed loads reference data into the storefront database.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"storefront/internal/auth"
	"storefront/internal/categories"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logger"
	"storefront/internal/util"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	app := &cli.App{
		Name:  "seed",
		Usage: "load categories and admin accounts into the storefront database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "postgres connection string",
				EnvVars: []string{"DATABASE_URL"},
				Value:   cfg.DatabaseURL,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "categories",
				Usage: "upsert categories by slug from a YAML file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Value: "seed/categories.yaml", Usage: "YAML file with a list of categories"},
				},
				Action: func(c *cli.Context) error {
					return seedCategories(c, log)
				},
			},
			{
				Name:  "admin",
				Usage: "create an admin account or promote an existing one",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
					&cli.StringFlag{Name: "first-name", Value: "Store"},
					&cli.StringFlag{Name: "last-name", Value: "Admin"},
				},
				Action: func(c *cli.Context) error {
					return seedAdmin(c, log)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

// openDB connects and applies the schema so seeding works on a fresh database.
func openDB(c *cli.Context) (*pgxpool.Pool, error) {
	url := c.String("database-url")
	if url == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pool, err := db.NewPostgres(c.Context, url, 2)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(c.Context, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func seedCategories(c *cli.Context, log *slog.Logger) error {
	f, err := os.Open(c.String("file"))
	if err != nil {
		return err
	}
	defer f.Close()
	inputs, err := parseCategories(f)
	if err != nil {
		return err
	}

	pool, err := openDB(c)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := categories.NewRepo(pool)
	for _, in := range inputs {
		if err := repo.UpsertBySlug(c.Context, in); err != nil {
			return fmt.Errorf("category %q: %w", in.Name, err)
		}
		log.Info("category upserted", "slug", in.Slug)
	}
	log.Info("categories seeded", "count", len(inputs))
	return nil
}

func seedAdmin(c *cli.Context, log *slog.Logger) error {
	email := util.NormalizeEmail(c.String("email"))
	password := c.String("password")
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	pool, err := openDB(c)
	if err != nil {
		return err
	}
	defer pool.Close()

	u, err := auth.NewUserRepo(pool).Promote(c.Context, auth.NewUser{
		FirstName:    c.String("first-name"),
		LastName:     c.String("last-name"),
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}
	log.Info("admin ready", "id", u.ID, "email", u.Email)
	return nil
}
