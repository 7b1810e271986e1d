package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Set a user's password; the password is prompted",
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if err = cli.resetPassword(cmd.Context(), email, pwd); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cli.out, "password updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	up := user.UpdatePassword{Password: pwd, PasswordConfirm: pwd}
	if err := up.Validate(cli.validate); err != nil {
		return cli.describe(err)
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}
