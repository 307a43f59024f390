package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
)

type accountRepository struct {
	db *accountTable
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db.account}
}

// clone copies acc so that callers never share memory with the table.
func clone(acc account.Account) account.Account {
	if acc.PasswordHash != nil {
		acc.PasswordHash = append([]byte(nil), acc.PasswordHash...)
	}
	if acc.ResetTokenExpiresAt != nil {
		t := *acc.ResetTokenExpiresAt
		acc.ResetTokenExpiresAt = &t
	}
	if acc.LastLogin != nil {
		t := *acc.LastLogin
		acc.LastLogin = &t
	}
	return acc
}

func emailKey(email string) string { return strings.ToLower(email) }

// checkUnique must be called with the write lock held.
func (repo *accountRepository) checkUnique(acc account.Account) error {
	if id, ok := repo.db.byEmail[emailKey(acc.Email)]; ok && id != acc.ID {
		return account.NewEmailConflict()
	}
	if acc.Identifier != "" {
		if id, ok := repo.db.byIdentifier[acc.Identifier]; ok && id != acc.ID {
			return account.NewIdentifierConflict()
		}
	}
	return nil
}

// index must be called with the write lock held.
func (repo *accountRepository) index(acc *account.Account) {
	repo.db.table[acc.ID] = acc
	repo.db.byEmail[emailKey(acc.Email)] = acc.ID
	if acc.Identifier != "" {
		repo.db.byIdentifier[acc.Identifier] = acc.ID
	}
}

// unindex must be called with the write lock held.
func (repo *accountRepository) unindex(acc *account.Account) {
	delete(repo.db.table, acc.ID)
	delete(repo.db.byEmail, emailKey(acc.Email))
	if acc.Identifier != "" {
		delete(repo.db.byIdentifier, acc.Identifier)
	}
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[acc.ID]; ok {
		return account.Account{}, core.NewConflictError("id", "id already exists.")
	}
	if err := repo.checkUnique(acc); err != nil {
		return account.Account{}, err
	}
	stored := clone(acc)
	repo.index(&stored)
	return clone(stored), nil
}

func (repo *accountRepository) GetAccount(_ context.Context, filter account.GetFilter) (account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var id string
	switch {
	case filter.ID != "":
		id = filter.ID
	case filter.Email != "":
		id = repo.db.byEmail[emailKey(filter.Email)]
	case filter.Identifier != "":
		id = repo.db.byIdentifier[filter.Identifier]
	}
	if acc, ok := repo.db.table[id]; ok {
		return clone(*acc), nil
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) QueryAccounts(_ context.Context, filter account.QueryFilter) ([]account.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	accounts := make([]account.Account, 0, len(repo.db.table))
	for _, acc := range repo.db.table {
		if len(filter.Roles) > 0 && !acc.HasRole(filter.Roles...) {
			continue
		}
		if filter.IsActive != nil && acc.IsActive != *filter.IsActive {
			continue
		}
		accounts = append(accounts, clone(*acc))
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[acc.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	if err := repo.checkUnique(acc); err != nil {
		return account.Account{}, err
	}
	stored := clone(*orig)
	stored.FirstName = acc.FirstName
	stored.LastName = acc.LastName
	stored.Email = acc.Email
	stored.Phone = acc.Phone
	stored.Identifier = acc.Identifier
	stored.Role = acc.Role
	stored.ClassLevel = acc.ClassLevel
	stored.UpdatedAt = acc.UpdatedAt
	repo.unindex(orig)
	repo.index(&stored)
	return clone(stored), nil
}

// modify applies f to the stored Account id under the write lock.
func (repo *accountRepository) modify(id string, f func(acc *account.Account)) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	acc, ok := repo.db.table[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	f(acc)
	return clone(*acc), nil
}

func (repo *accountRepository) SetLastLogin(_ context.Context, id string, t time.Time) (account.Account, error) {
	return repo.modify(id, func(acc *account.Account) {
		t := t.UTC()
		acc.LastLogin = &t
	})
}

func (repo *accountRepository) SetResetToken(_ context.Context, id, token string, expiresAt, now time.Time) (account.Account, error) {
	return repo.modify(id, func(acc *account.Account) {
		exp := expiresAt.UTC()
		acc.ResetToken = token
		acc.ResetTokenExpiresAt = &exp
		acc.UpdatedAt = now.UTC()
	})
}

func (repo *accountRepository) SetPassword(_ context.Context, id string, passwordHash []byte, now time.Time) (account.Account, error) {
	return repo.modify(id, func(acc *account.Account) {
		acc.PasswordHash = append([]byte(nil), passwordHash...)
		acc.ResetToken = ""
		acc.ResetTokenExpiresAt = nil
		acc.UpdatedAt = now.UTC()
	})
}

func (repo *accountRepository) SetActive(_ context.Context, id string, isActive bool, now time.Time) (account.Account, error) {
	return repo.modify(id, func(acc *account.Account) {
		acc.IsActive = isActive
		acc.UpdatedAt = now.UTC()
	})
}

func (repo *accountRepository) DeleteAccount(_ context.Context, filter account.DeleteFilter) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	acc, ok := repo.db.table[filter.ID]
	if !ok || (filter.Role != "" && acc.Role != filter.Role) {
		return account.ErrNotFound
	}
	repo.unindex(acc)
	return nil
}

func (repo *accountRepository) RedeemResetToken(_ context.Context, token string, now time.Time, passwordHash []byte) (account.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if token == "" {
		return account.Account{}, account.ErrNotFound
	}
	for _, acc := range repo.db.table {
		if acc.ResetToken != token || acc.ResetTokenExpiresAt == nil || !acc.ResetTokenExpiresAt.After(now) {
			continue
		}
		acc.PasswordHash = append([]byte(nil), passwordHash...)
		acc.ResetToken = ""
		acc.ResetTokenExpiresAt = nil
		acc.UpdatedAt = now.UTC()
		return clone(*acc), nil
	}
	return account.Account{}, account.ErrNotFound
}
