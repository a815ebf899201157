package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/boro/internal/db"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/store"
)

func newInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database and the admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(a.cfg.DB); err == nil {
				return fmt.Errorf("database %s already exists", a.cfg.DB)
			}

			database, password, err := initDatabase(cmd.Context(), a.cfg.DB, a.cfg.AdminUser)
			if err != nil {
				return err
			}
			defer database.Close()

			printInitResult(a.cfg.DB, a.cfg.AdminUser, password)
			return nil
		},
	}
	cmd.Flags().StringP("admin-user", "u", "", "admin username (env BORO_ADMIN_USER, default admin)")
	return cmd
}

// initDatabase creates a new database, ensures the schema, and creates the admin user.
func initDatabase(ctx context.Context, path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail(fmt.Errorf("ensuring schema: %w", err))
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}

	if _, err := createUser(ctx, database, adminUsername, password, model.RoleAdmin, store.UserProfile{}); err != nil {
		return fail(fmt.Errorf("creating admin user: %w", err))
	}

	return database, password, nil
}

func createUser(ctx context.Context, database *sql.DB, username, password, role string, profile store.UserProfile) (*model.User, error) {
	existing, err := store.GetUserByUsername(ctx, database, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user %s already exists", username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return store.CreateUser(ctx, database, username, string(hash), role, profile)
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	printCredentials("Admin account created:", username, password)
}

func printCredentials(title, username, password string) {
	fmt.Println(title)
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("It can be changed after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
