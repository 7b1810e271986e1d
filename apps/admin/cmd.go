package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errPasswordRequired = errors.New("a password is required")
)

type commandLine struct {
	db          *sqlx.DB
	usrRepo     user.Repository
	courseSvc   *course.Service
	purchaseSvc *purchase.Service
	validate    *validator.Validate
	translator  ut.Translator
	out         io.Writer
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "LCUPrep administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.grantCmd(),
		cli.importCoursesCmd(),
	)
	return root
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errPasswordRequired
	}
	return string(pwd), nil
}

// describe flattens validation errors into a single readable line.
func (cli *commandLine) describe(err error) error {
	switch vErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		msgs := make([]string, 0, len(vErr))
		for _, fe := range vErr {
			msgs = append(msgs, fe.Field()+": "+fe.Translate(cli.translator))
		}
		return errors.New(strings.Join(msgs, "; "))
	case *core.ValidationError:
		flds := vErr.FieldMap()
		if flds == nil {
			return vErr
		}
		msgs := make([]string, 0, len(flds))
		for field, msg := range flds {
			msgs = append(msgs, field+": "+msg)
		}
		sort.Strings(msgs)
		return errors.New(strings.Join(msgs, "; "))
	}
	return err
}
