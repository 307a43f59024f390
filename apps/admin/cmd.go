package main

import (
	"database/sql"
	"errors"
	"io"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	db     *sql.DB // postgres only
	repo   account.Repository
	accSvc *account.Service
	out    io.Writer // defaults to stdout
}

func (cli *commandLine) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "LearnLink administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	cmd.AddCommand(cli.resetPasswordCmd())
	cmd.AddCommand(cli.ensureSuperAdminCmd())
	cmd.AddCommand(cli.migrateCmd())
	return cmd
}

// run executes args, program name included.
func (cli *commandLine) run(args []string) error {
	cmd := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	cmd.SetArgs(args)
	if cli.out != nil {
		cmd.SetOut(cli.out)
		cmd.SetErr(cli.out)
	}
	return cmd.Execute()
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	cmd.Print(prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cmd.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
