package main

import (
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/learnlink/backend/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose migration command against the postgres database",
		Long: "Run a goose migration command against the postgres database.\n" +
			"Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version, create NAME [sql], fix",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errors.New("migrations require the postgres database engine")
	}
	if err := database.PrepareMigrations(); err != nil {
		return errors.Wrap(err, "preparing migrations")
	}
	return gooseRunFunc(args[0], cli.db, database.MigrationsDir, args[1:]...)
}
