package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/leadline/internal/api/auth"
	"github.com/leadline/internal/config"
	"github.com/leadline/internal/database"
	"github.com/leadline/internal/store"
)

// AdminCommand returns the admin account management command
func AdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Manage dashboard admin accounts",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an admin account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Admin email", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Admin display name", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Admin password", Required: true},
				},
				Action: runAdminCreate,
			},
		},
	}
}

func runAdminCreate(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(db); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	hash, err := auth.HashPassword(c.String("password"))
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admins := store.NewAdminRepo(db)
	admin, err := admins.Create(context.Background(), c.String("email"), c.String("name"), hash)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	fmt.Printf("Created admin %s (%s)\n", admin.Name, admin.Email)
	return nil
}
