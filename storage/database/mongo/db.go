// Package mongorepos stores accounts in MongoDB.
package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/learnlink/backend/core"
)

const (
	accountsCollection  = "accounts"
	emailIndexName      = "accounts_email_key"
	identifierIndexName = "accounts_identifier_key"
	resetTokenIndexName = "accounts_reset_token_idx"
	pingMaxRetries      = 30
)

var pingDelay = 100 * time.Millisecond

// Open connects to conf.Database.MongoURI, waits for the server and makes sure the indexes exist.
func Open(ctx context.Context, conf *core.Config) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Database.MongoURI))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}

	backoff := retry.WithMaxRetries(pingMaxRetries, retry.NewConstant(pingDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "mongo ping timeout")
	}

	db := client.Database(conf.Database.Name)
	if err = EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return db, nil
}

// EnsureIndexes creates the unique indexes backing the account invariants.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(accountsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(emailIndexName).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "identifier", Value: 1}},
			Options: options.Index().SetName(identifierIndexName).SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "resetToken", Value: 1}},
			Options: options.Index().SetName(resetTokenIndexName).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}, {Key: "createdAt", Value: 1}},
		},
	})
	return errors.Wrap(err, "creating account indexes")
}
