package dig_container

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/learnlink/backend/apps/api/echo"
	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
	"github.com/learnlink/backend/testutil"
)

func TestNew(t *testing.T) {
	conf := testutil.NewConfig()
	conf.SuperAdmin = core.SuperAdminConfig{Email: "root@test.cd", Password: "rootpass1"}
	c := New(func() *core.Config { return conf })

	err := c.Invoke(func(
		repo account.Repository,
		closeDB DBCloser,
		mailSvc core.EmailService,
		svc *account.Service,
		server *echoapi.Server,
	) {
		defer func() { assert.NoError(t, closeDB(context.Background())) }()

		// no debug and no API key: deliveries fail without reaching the network
		assert.Equal(t, core.ErrMailNotConfigured, mailSvc.Send(context.Background(), &core.EmailMessage{}))

		acc, err := svc.EnsureSuperAdmin(context.Background(), conf.SuperAdmin.Email, conf.SuperAdmin.Password)
		require.NoError(t, err)

		stored, err := repo.GetAccount(context.Background(), account.GetFilter{ID: acc.ID})
		require.NoError(t, err)
		assert.True(t, stored.IsSuperAdmin())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	require.NoError(t, err)
}

func TestNew_consoleMailInDebug(t *testing.T) {
	conf := testutil.NewConfig()
	conf.Debug = true
	c := New(func() *core.Config { return conf })

	err := c.Invoke(func(mailSvc core.EmailService) {
		assert.Equal(t, "*emailsvc.consoleService", fmt.Sprintf("%T", mailSvc))
	})
	require.NoError(t, err)
}
