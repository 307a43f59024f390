package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var identifier string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset an account's password",
		Long:  "Reset the password of the account matching --identifier (email or uniqueId). The password is prompted next.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if identifier == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := promptPassword(cmd, "Enter password:")
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Usage()
				return errHelp
			}
			if err = cli.resetPassword(cmd.Context(), identifier, pwd); err != nil {
				return err
			}
			cmd.Println("Password updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&identifier, "identifier", "", "The account's email or uniqueId.")
	return cmd
}

func (cli *commandLine) resetPassword(ctx context.Context, identifier, pwd string) error {
	filter := account.GetFilter{Identifier: core.CleanUpperString(identifier)}
	if strings.Contains(identifier, "@") {
		filter = account.GetFilter{Email: core.CleanString(identifier, true /* lower */)}
	}

	acc, err := cli.repo.GetAccount(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "finding account")
	}
	return cli.accSvc.ChangePassword(ctx, acc.ID, account.PasswordChange{Password: pwd}, false)
}
