package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account"
	"github.com/ovaphlow/pitchfork/service-account-admin/pkg/database"
)

func runMigrations(st *stores, logger *zap.SugaredLogger) error {
	if st.db == nil {
		return errors.New("migrations need STORE_DRIVER=postgres")
	}
	if err := database.Migrate(st.db.DB); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStores(rt.cfg, rt.sugar)
			if err != nil {
				return err
			}
			defer st.Close()
			return runMigrations(st, rt.sugar)
		},
	}
}

func newCreateAdminCmd(rt *runtime) *cobra.Command {
	var in account.CreateInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an ADMIN account (prints a generated password when none is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStores(rt.cfg, rt.sugar)
			if err != nil {
				return err
			}
			defer st.Close()

			accounts, _ := newServices(rt.cfg, st, rt.sugar)
			res := accounts.Bootstrap(cmd.Context(), in)
			if !res.Success {
				return fmt.Errorf("%s (%s)", res.Message, res.Error)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created admin %s <%s> id=%s\n", res.User.Username, res.User.Email, res.User.ID)
			if res.GeneratedPassword != nil {
				if pw, ok := res.GeneratedPassword.Reveal(); ok {
					fmt.Fprintf(out, "generated password: %s\n", pw)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&in.Username, "username", "", "username (required)")
	cmd.Flags().StringVar(&in.Password, "password", "", "password; generated when empty")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
