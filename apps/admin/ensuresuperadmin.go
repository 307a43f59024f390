package main

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/spf13/cobra"

	"github.com/learnlink/backend/core/account"
)

func (cli *commandLine) ensureSuperAdminCmd() *cobra.Command {
	var email, pwd string
	cmd := &cobra.Command{
		Use:   "ensuresuperadmin",
		Short: "Create the superadmin account or reset its password",
		Long: "Create the superadmin account or reassert its role, password and active flag.\n" +
			"--email defaults to <ENV>_SUPERADMIN_EMAIL; the password defaults to <ENV>_SUPERADMIN_PASSWORD and is prompted when unset.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if email == "" {
				email = cli.conf.SuperAdmin.Email
			}
			if pwd == "" {
				pwd = cli.conf.SuperAdmin.Password
			}
			if email != "" && pwd == "" {
				if pwd, err = promptPassword(cmd, "Enter password:"); err != nil {
					return err
				}
			}

			err = vala.BeginValidation().Validate(
				vala.StringNotEmpty(email, "email"),
				vala.StringNotEmpty(pwd, "password"),
			).Check()
			if err != nil {
				_ = cmd.Usage()
				return err
			}

			acc, err := cli.ensureSuperAdmin(cmd.Context(), email, pwd)
			if err != nil {
				return err
			}
			cmd.Printf("Superadmin %s is ready.\n", acc.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The superadmin email.")
	return cmd
}

// ensureSuperAdmin updates or creates the superadmin account.Account
func (cli *commandLine) ensureSuperAdmin(ctx context.Context, email, pwd string) (account.Account, error) {
	return cli.accSvc.EnsureSuperAdmin(ctx, email, pwd)
}
