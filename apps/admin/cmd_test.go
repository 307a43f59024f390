package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
	"github.com/learnlink/backend/core/session"
	emailsvc "github.com/learnlink/backend/services/email"
	inmemdb "github.com/learnlink/backend/storage/database/inmem"
	"github.com/learnlink/backend/testutil"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	conf := testutil.NewConfig()
	repo := inmemdb.NewAccountRepository(inmemdb.Open())
	validate, translator := testutil.NewValidator()
	logger := testutil.NewLogger()

	var out bytes.Buffer
	return &commandLine{
		conf: conf,
		repo: repo,
		accSvc: account.NewService(
			conf, repo, account.NewBcryptHasher(conf), session.NewIssuer(conf), emailsvc.NewServiceMock(), logger, validate, translator,
		),
		out: &out,
	}, &out
}

func mockReadPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockReadPassword(t, tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
			default:
				require.NoError(t, err)
				if check != nil {
					check(t, tt)
				}
			}
		})
	}
}

func Test_commandLine_root(t *testing.T) {
	cli, out := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol"`},
	}, nil)
	assert.Contains(t, out.String(), "resetpassword")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	t.Run("postgres required", func(t *testing.T) {
		err := cli.run([]string{"admin", "migrate", "up"})
		assert.EqualError(t, err, "migrations require the postgres database engine")
	})

	cli.db = new(sql.DB)
	var gotDir string
	orig := gooseRunFunc
	defer func() { gooseRunFunc = orig }()
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotDir = dir
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "grades", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	runCLITests(t, cli, tests, func(t *testing.T, _ cliTest) {
		assert.Equal(t, "migrations", gotDir)
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)
	acc := testutil.CreateAccount(t, cli.repo, "Ada", "ada@test.cd", "secret1", account.RoleStudent, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "identifier but no password", args: []string{"resetpassword", "--identifier", "lol"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "--identifier", "lol"}, pwd: "newpass1", wantErr: account.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "--identifier", acc.Email}, pwd: "abc", wantErrStr: "validation failed: password"},
		{name: "reset with uniqueId", args: []string{"resetpassword", "--identifier", acc.Identifier}, pwd: "newpass1"},
		{name: "reset with email", args: []string{"resetpassword", "--identifier", "ADA@test.cd"}, pwd: "newpass2"},
	}
	runCLITests(t, cli, tests, func(t *testing.T, tt cliTest) {
		refreshed, err := cli.repo.GetAccount(context.Background(), account.GetFilter{ID: acc.ID})
		require.NoError(t, err)
		assert.NotEqual(t, acc.PasswordHash, refreshed.PasswordHash)
		assert.True(t, account.NewBcryptHasher(cli.conf).Verify(refreshed.PasswordHash, tt.pwd))
	})
}

func Test_commandLine_ensureSuperAdmin(t *testing.T) {
	cli, out := setup(t)

	t.Run("not configured", func(t *testing.T) {
		mockReadPassword(t, "")
		err := cli.run([]string{"admin", "ensuresuperadmin"})
		require.Error(t, err)
		assert.NotEqual(t, errHelp, err)
	})

	t.Run("prompted password", func(t *testing.T) {
		mockReadPassword(t, "rootpass1")
		require.NoError(t, cli.run([]string{"admin", "ensuresuperadmin", "--email", "Root@test.cd"}))
		assert.Contains(t, out.String(), "Superadmin root@test.cd is ready.")

		acc, err := cli.repo.GetAccount(context.Background(), account.GetFilter{Email: "root@test.cd"})
		require.NoError(t, err)
		assert.True(t, acc.IsSuperAdmin())
		assert.True(t, acc.IsActive)
	})

	t.Run("configured credentials", func(t *testing.T) {
		cli.conf.SuperAdmin = core.SuperAdminConfig{Email: "root@test.cd", Password: "rootpass2"}
		require.NoError(t, cli.run([]string{"admin", "ensuresuperadmin"}))

		acc, err := cli.repo.GetAccount(context.Background(), account.GetFilter{Email: "root@test.cd"})
		require.NoError(t, err)
		assert.True(t, account.NewBcryptHasher(cli.conf).Verify(acc.PasswordHash, "rootpass2"))

		all, err := cli.repo.QueryAccounts(context.Background(), account.QueryFilter{Roles: []string{account.RoleSuperAdmin}})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}
