package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/boro/internal/db"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/store"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var admin bool
	var displayName, email string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account with a generated password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.Open(a.cfg.DB)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.EnsureSchema(database); err != nil {
				return err
			}

			password, err := generatePassword(16)
			if err != nil {
				return err
			}

			role := model.RoleUser
			if admin {
				role = model.RoleAdmin
			}

			user, err := createUser(cmd.Context(), database, args[0], password, role, store.UserProfile{
				DisplayName: displayName,
				Email:       email,
			})
			if err != nil {
				return err
			}

			a.logger.Info("user created", "user", user.Username, "role", user.Role)
			printCredentials(fmt.Sprintf("Account created (%s):", user.Role), user.Username, password)
			return nil
		},
	}
	add.Flags().BoolVar(&admin, "admin", false, "give the account the admin role")
	add.Flags().StringVar(&displayName, "display-name", "", "name shown to other users")
	add.Flags().StringVar(&email, "email", "", "contact email")

	cmd.AddCommand(add)
	return cmd
}
