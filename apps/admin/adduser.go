package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/volatiletech/null/v8"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var email, name string
	var isAdmin bool

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update an active user; the password is prompted",
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), email, name, pwd, isAdmin)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "user %s saved (id %s)\n", usr.Email, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	cmd.Flags().StringVar(&name, "name", "", "The user's full name")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Grant admin rights")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// addUser updates or creates an active user.User, and its profile when a name is given.
func (cli *commandLine) addUser(ctx context.Context, email, name, pwd string, isAdmin bool) (user.User, error) {
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	if err := cli.validate.Var(email, "required,email"); err != nil {
		return user.User{}, cli.describe(err)
	}
	up := user.UpdatePassword{Password: pwd, PasswordConfirm: pwd}
	if err := up.Validate(cli.validate); err != nil {
		return user.User{}, cli.describe(err)
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	exists := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, errors.Wrap(err, "getting user")
		}
		usr = user.User{ID: uuid.NewString(), Email: email, CreatedAt: now}
	}
	usr.IsActive = true
	usr.IsAdmin = usr.IsAdmin || isAdmin
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "setting password")
	}

	if exists {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	if err != nil {
		return user.User{}, errors.Wrap(err, "saving user")
	}

	if name != "" {
		prof := user.Profile{ID: usr.ID, FullName: null.StringFrom(name), CreatedAt: now, UpdatedAt: now}
		if orig, err := cli.usrRepo.GetProfile(ctx, usr.ID); err == nil {
			prof.Faculty, prof.Level, prof.CreatedAt = orig.Faculty, orig.Level, orig.CreatedAt
		}
		if _, err = cli.usrRepo.CreateProfile(ctx, prof); err != nil {
			return user.User{}, errors.Wrap(err, "saving profile")
		}
	}
	return usr, nil
}
