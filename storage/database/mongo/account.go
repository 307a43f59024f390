package mongorepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/learnlink/backend/core/account"
)

type accountRepository struct {
	coll *mongo.Collection
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *mongo.Database) *accountRepository {
	return &accountRepository{coll: db.Collection(accountsCollection)}
}

// trapErr maps "no documents" to account.ErrNotFound and duplicate keys to conflicts.
func (repo accountRepository) trapErr(err error, msg string) error {
	if errors.Cause(err) == mongo.ErrNoDocuments {
		return account.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		switch {
		case strings.Contains(err.Error(), emailIndexName):
			return account.NewEmailConflict()
		case strings.Contains(err.Error(), identifierIndexName):
			return account.NewIdentifierConflict()
		}
	}
	return errors.Wrap(err, msg)
}

// normalize lowers the email (the unique index is case-sensitive) and drops
// the sub-millisecond precision BSON dates cannot hold.
func normalize(acc account.Account) account.Account {
	acc.Email = strings.ToLower(acc.Email)
	acc.CreatedAt = acc.CreatedAt.UTC().Truncate(time.Millisecond)
	acc.UpdatedAt = acc.UpdatedAt.UTC().Truncate(time.Millisecond)
	if acc.ResetTokenExpiresAt != nil {
		t := acc.ResetTokenExpiresAt.UTC().Truncate(time.Millisecond)
		acc.ResetTokenExpiresAt = &t
	}
	if acc.LastLogin != nil {
		t := acc.LastLogin.UTC().Truncate(time.Millisecond)
		acc.LastLogin = &t
	}
	return acc
}

func (repo accountRepository) CreateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	acc = normalize(acc)
	if _, err := repo.coll.InsertOne(ctx, acc); err != nil {
		return account.Account{}, repo.trapErr(err, "inserting account")
	}
	return acc, nil
}

func (repo accountRepository) GetAccount(ctx context.Context, filter account.GetFilter) (account.Account, error) {
	var q bson.M
	switch {
	case filter.ID != "":
		q = bson.M{"_id": filter.ID}
	case filter.Email != "":
		q = bson.M{"email": strings.ToLower(filter.Email)}
	case filter.Identifier != "":
		q = bson.M{"identifier": filter.Identifier}
	default:
		return account.Account{}, account.ErrNotFound
	}

	var acc account.Account
	if err := repo.coll.FindOne(ctx, q).Decode(&acc); err != nil {
		return account.Account{}, repo.trapErr(err, "finding account")
	}
	return normalize(acc), nil
}

func (repo accountRepository) QueryAccounts(ctx context.Context, filter account.QueryFilter) ([]account.Account, error) {
	q := bson.M{}
	if len(filter.Roles) > 0 {
		q["role"] = bson.M{"$in": filter.Roles}
	}
	if filter.IsActive != nil {
		q["isActive"] = *filter.IsActive
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := repo.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying accounts")
	}
	accounts := make([]account.Account, 0)
	if err = cur.All(ctx, &accounts); err != nil {
		return nil, errors.Wrap(err, "decoding accounts")
	}
	for i := range accounts {
		accounts[i] = normalize(accounts[i])
	}
	return accounts, nil
}

// updateOne applies update to the Account id and returns the updated document.
func (repo accountRepository) updateOne(ctx context.Context, id string, update bson.M) (account.Account, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated account.Account
	if err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		return account.Account{}, repo.trapErr(err, "updating account")
	}
	return normalize(updated), nil
}

func (repo accountRepository) UpdateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	acc = normalize(acc)
	set := bson.M{
		"firstName": acc.FirstName,
		"lastName":  acc.LastName,
		"email":     acc.Email,
		"role":      acc.Role,
		"updatedAt": acc.UpdatedAt,
	}
	unset := bson.M{}
	for field, val := range map[string]string{"phone": acc.Phone, "identifier": acc.Identifier, "classLevel": acc.ClassLevel} {
		if val == "" {
			unset[field] = "" // sparse index on identifier
		} else {
			set[field] = val
		}
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return repo.updateOne(ctx, acc.ID, update)
}

func (repo accountRepository) SetLastLogin(ctx context.Context, id string, t time.Time) (account.Account, error) {
	return repo.updateOne(ctx, id, bson.M{"$set": bson.M{"lastLogin": t.UTC().Truncate(time.Millisecond)}})
}

func (repo accountRepository) SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) (account.Account, error) {
	return repo.updateOne(ctx, id, bson.M{"$set": bson.M{
		"resetToken":          token,
		"resetTokenExpiresAt": expiresAt.UTC().Truncate(time.Millisecond),
		"updatedAt":           now.UTC().Truncate(time.Millisecond),
	}})
}

func (repo accountRepository) SetPassword(ctx context.Context, id string, passwordHash []byte, now time.Time) (account.Account, error) {
	return repo.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"passwordHash": passwordHash, "updatedAt": now.UTC().Truncate(time.Millisecond)},
		"$unset": bson.M{"resetToken": "", "resetTokenExpiresAt": ""},
	})
}

func (repo accountRepository) SetActive(ctx context.Context, id string, isActive bool, now time.Time) (account.Account, error) {
	return repo.updateOne(ctx, id, bson.M{"$set": bson.M{
		"isActive":  isActive,
		"updatedAt": now.UTC().Truncate(time.Millisecond),
	}})
}

func (repo accountRepository) DeleteAccount(ctx context.Context, filter account.DeleteFilter) error {
	q := bson.M{"_id": filter.ID}
	if filter.Role != "" {
		q["role"] = filter.Role
	}
	res, err := repo.coll.DeleteOne(ctx, q)
	if err != nil {
		return errors.Wrap(err, "deleting account")
	}
	if res.DeletedCount == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (repo accountRepository) RedeemResetToken(ctx context.Context, token string, now time.Time, passwordHash []byte) (account.Account, error) {
	if token == "" {
		return account.Account{}, account.ErrNotFound
	}
	now = now.UTC().Truncate(time.Millisecond)
	q := bson.M{
		"resetToken":          token,
		"resetTokenExpiresAt": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"passwordHash": passwordHash, "updatedAt": now},
		"$unset": bson.M{"resetToken": "", "resetTokenExpiresAt": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var acc account.Account
	if err := repo.coll.FindOneAndUpdate(ctx, q, update, opts).Decode(&acc); err != nil {
		return account.Account{}, repo.trapErr(err, "redeeming reset token")
	}
	return normalize(acc), nil
}
