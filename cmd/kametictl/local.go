package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/kameti/internal/auth"
	"github.com/mmynk/kameti/internal/models"
	"github.com/mmynk/kameti/internal/storage/sqlite"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [email]",
		Short: "Mint a bearer token for a directory user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("KAMETI_JWT_SECRET is required")
			}
			role, _ := cmd.Flags().GetString("role")
			switch auth.Role(role) {
			case auth.RoleMember, auth.RoleOperator:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			store, err := sqlite.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			user, err := store.GetUserByEmail(cmd.Context(), strings.ToLower(args[0]))
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user %s not found", args[0])
			}

			token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL).Generate(user, auth.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("role", string(auth.RoleMember), "Token role (member, operator)")

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the member directory",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add [email] [display-name]",
		Short: "Add a user to the directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return addUser(cmd, cfg.DBPath, args[0], args[1])
		},
	})
	return cmd
}

func addUser(cmd *cobra.Command, dbPath, email, displayName string) error {
	store, err := sqlite.New(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	user := models.NewUser(email, displayName)
	if err := store.CreateUser(cmd.Context(), user); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", user.ID, user.Email)
	return nil
}
