package main

import (
	"errors"
	"strings"

	"letscrap-backend/internal/auth"
	"letscrap-backend/internal/database"
	"letscrap-backend/internal/logging"

	"github.com/spf13/cobra"
)

var (
	adminName     *string
	adminEmail    *string
	adminPassword *string
)

func init() {
	adminName = createAdminCmd.Flags().String("name", "Administrator", "Display name of the admin.")
	adminEmail = createAdminCmd.Flags().String("email", "", "Login email of the admin.")
	adminPassword = createAdminCmd.Flags().String("password", "", "Password, at least 6 characters.")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Connects to the database and migrates the schema.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return database.Init(cfg)
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin --email <email> --password <password> [--name <name>]",
	Short: "Creates an admin account, even when one already exists.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(*adminPassword) < 6 {
			return errors.New("password must be at least 6 characters")
		}
		if err := database.Init(cfg); err != nil {
			return err
		}

		user, err := auth.CreateAdmin(strings.TrimSpace(*adminName), auth.NormalizeEmail(*adminEmail), *adminPassword, false)
		if err != nil {
			return err
		}
		logging.Info().Uint("user_id", user.ID).Str("email", user.Email).Msg("admin created")
		return nil
	},
}
