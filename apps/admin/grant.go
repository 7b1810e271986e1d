package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/payment"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/user"
)

func (cli *commandLine) grantCmd() *cobra.Command {
	var email, courseID, reference string

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Record a purchase without payment (support & refunds)",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, created, err := cli.grant(cmd.Context(), email, courseID, reference)
			if err != nil {
				return err
			}
			if created {
				_, _ = fmt.Fprintf(cli.out, "granted %s to %s (reference %s)\n", p.CourseID, email, p.Reference)
			} else {
				_, _ = fmt.Fprintf(cli.out, "%s already owns %s\n", email, p.CourseID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The buyer's email")
	cmd.Flags().StringVar(&courseID, "course", "", "The course ID or code")
	cmd.Flags().StringVar(&reference, "reference", "", "The payment reference; generated when empty")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

// grant commits a purchase of courseID by the user with email. Granting an owned course
// is a no-op.
func (cli *commandLine) grant(ctx context.Context, email, courseID, reference string) (purchase.Purchase, bool, error) {
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return purchase.Purchase{}, false, err
	}
	c, err := cli.courseSvc.Get(ctx, course.Slug(courseID)) // IDs & codes alike
	if err != nil {
		return purchase.Purchase{}, false, err
	}

	if reference = strings.TrimSpace(reference); reference == "" {
		reference = payment.Reference(c.ID, time.Now())
	}
	p, created, err := cli.purchaseSvc.Commit(ctx, usr.ID, c.ID, reference, payment.AmountFor(c))
	if err != nil {
		return purchase.Purchase{}, false, errors.Wrap(err, "granting course")
	}
	return p, created, nil
}
