package main

import (
	"github.com/spf13/cobra"

	"github.com/Bigestdave/LCUPrep/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command (up, down, status, version, redo, reset, up-to, down-to)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gooseRunFunc(cli.db, args[0], args[1:]...)
		},
	}
}
