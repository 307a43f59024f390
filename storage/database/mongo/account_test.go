package mongorepos_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/learnlink/backend/core/account"
	"github.com/learnlink/backend/storage/database/dbtest"
	mongorepos "github.com/learnlink/backend/storage/database/mongo"
	"github.com/learnlink/backend/testutil"
)

func TestAccountRepository(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	conf := testutil.NewConfig()
	conf.Database.Engine = "mongo"
	conf.Database.MongoURI = uri
	conf.Database.Name = "learnlink_test"

	ctx := context.Background()
	db, err := mongorepos.Open(ctx, conf)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = db.Client().Disconnect(ctx)
	})

	dbtest.TestAccountRepository(t, func(t *testing.T) account.Repository {
		require.NoError(t, db.Drop(ctx))
		require.NoError(t, mongorepos.EnsureIndexes(ctx, db))
		return mongorepos.NewAccountRepository(db)
	})
}
