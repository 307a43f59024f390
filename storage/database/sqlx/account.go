package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learnlink/backend/core/account"
)

const (
	uniqueViolation      = pq.ErrorCode("23505")
	emailConstraint      = "accounts_email_key"
	identifierConstraint = "accounts_identifier_key"

	accountColumns = `id, first_name, last_name, email, password_hash, phone, identifier, role, class_level,
		is_active, reset_token, reset_token_expires_at, last_login, created_at, updated_at`
)

type accountRow struct {
	ID                  string      `db:"id"`
	FirstName           string      `db:"first_name"`
	LastName            string      `db:"last_name"`
	Email               string      `db:"email"`
	PasswordHash        []byte      `db:"password_hash"`
	Phone               null.String `db:"phone"`
	Identifier          null.String `db:"identifier"`
	Role                string      `db:"role"`
	ClassLevel          null.String `db:"class_level"`
	IsActive            bool        `db:"is_active"`
	ResetToken          null.String `db:"reset_token"`
	ResetTokenExpiresAt null.Time   `db:"reset_token_expires_at"`
	LastLogin           null.Time   `db:"last_login"`
	CreatedAt           time.Time   `db:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at"`
}

type accountRepository struct {
	exec sqlx.ExtContext
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(exec sqlx.ExtContext) *accountRepository {
	return &accountRepository{exec: exec}
}

func (repo accountRepository) toRow(acc account.Account) accountRow {
	if acc.PasswordHash == nil {
		acc.PasswordHash = []byte{} // NOT NULL column
	}
	return accountRow{
		ID:                  acc.ID,
		FirstName:           acc.FirstName,
		LastName:            acc.LastName,
		Email:               acc.Email,
		PasswordHash:        acc.PasswordHash,
		Phone:               null.NewString(acc.Phone, acc.Phone != ""),
		Identifier:          null.NewString(acc.Identifier, acc.Identifier != ""),
		Role:                acc.Role,
		ClassLevel:          null.NewString(acc.ClassLevel, acc.ClassLevel != ""),
		IsActive:            acc.IsActive,
		ResetToken:          null.NewString(acc.ResetToken, acc.ResetToken != ""),
		ResetTokenExpiresAt: null.TimeFromPtr(acc.ResetTokenExpiresAt),
		LastLogin:           null.TimeFromPtr(acc.LastLogin),
		CreatedAt:           acc.CreatedAt.UTC(),
		UpdatedAt:           acc.UpdatedAt.UTC(),
	}
}

func (repo accountRepository) fromRow(row accountRow) account.Account {
	acc := account.Account{
		ID:           row.ID,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Phone:        row.Phone.String,
		Identifier:   row.Identifier.String,
		Role:         row.Role,
		ClassLevel:   row.ClassLevel.String,
		IsActive:     row.IsActive,
		ResetToken:   row.ResetToken.String,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.ResetTokenExpiresAt.Valid {
		t := row.ResetTokenExpiresAt.Time.UTC()
		acc.ResetTokenExpiresAt = &t
	}
	if row.LastLogin.Valid {
		t := row.LastLogin.Time.UTC()
		acc.LastLogin = &t
	}
	return acc
}

// trapErr maps "no rows" to account.ErrNotFound and unique violations to conflicts.
func (repo accountRepository) trapErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return account.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case emailConstraint:
			return account.NewEmailConflict()
		case identifierConstraint:
			return account.NewIdentifierConflict()
		}
	}
	return errors.Wrap(err, msg)
}

// namedGet runs a named query expected to return exactly one row.
func (repo accountRepository) namedGet(ctx context.Context, query string, arg interface{}) (accountRow, error) {
	rows, err := sqlx.NamedQueryContext(ctx, repo.exec, query, arg)
	if err != nil {
		return accountRow{}, err
	}
	defer func() { _ = rows.Close() }()

	var row accountRow
	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return accountRow{}, err
		}
		return accountRow{}, sql.ErrNoRows
	}
	if err = rows.StructScan(&row); err != nil {
		return accountRow{}, err
	}
	return row, rows.Err()
}

func (repo accountRepository) CreateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	q := `INSERT INTO accounts (` + accountColumns + `)
		VALUES (:id, :first_name, :last_name, :email, :password_hash, :phone, :identifier, :role, :class_level,
			:is_active, :reset_token, :reset_token_expires_at, :last_login, :created_at, :updated_at)
		RETURNING ` + accountColumns
	row, err := repo.namedGet(ctx, q, repo.toRow(acc))
	if err != nil {
		return account.Account{}, repo.trapErr(err, "inserting account")
	}
	return repo.fromRow(row), nil
}

func (repo accountRepository) GetAccount(ctx context.Context, filter account.GetFilter) (account.Account, error) {
	var where string
	var arg interface{}

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return account.Account{}, account.ErrNotFound
		}
		where, arg = "id = $1", filter.ID
	case filter.Email != "":
		where, arg = "lower(email) = lower($1)", filter.Email
	case filter.Identifier != "":
		where, arg = "identifier = $1", filter.Identifier
	default:
		return account.Account{}, account.ErrNotFound
	}

	var row accountRow
	if err := sqlx.GetContext(ctx, repo.exec, &row, "SELECT "+accountColumns+" FROM accounts WHERE "+where, arg); err != nil {
		return account.Account{}, repo.trapErr(err, "finding account")
	}
	return repo.fromRow(row), nil
}

func (repo accountRepository) QueryAccounts(ctx context.Context, filter account.QueryFilter) ([]account.Account, error) {
	var conds []string
	var args []interface{}

	if len(filter.Roles) > 0 {
		args = append(args, pq.Array(filter.Roles))
		conds = append(conds, "role = ANY($"+strconv.Itoa(len(args))+")")
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conds = append(conds, "is_active = $"+strconv.Itoa(len(args)))
	}

	q := "SELECT " + accountColumns + " FROM accounts"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at, id"

	var rows []accountRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying accounts")
	}
	accounts := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, repo.fromRow(row))
	}
	return accounts, nil
}

func (repo accountRepository) UpdateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	if _, err := uuid.Parse(acc.ID); err != nil {
		return account.Account{}, account.ErrNotFound
	}
	q := `UPDATE accounts SET
			first_name = :first_name,
			last_name = :last_name,
			email = :email,
			phone = :phone,
			identifier = :identifier,
			role = :role,
			class_level = :class_level,
			updated_at = :updated_at
		WHERE id = :id
		RETURNING ` + accountColumns
	row, err := repo.namedGet(ctx, q, repo.toRow(acc))
	if err != nil {
		return account.Account{}, repo.trapErr(err, "updating account")
	}
	return repo.fromRow(row), nil
}

// setFields runs a single-row UPDATE of the given SET clause on the Account id.
// Arguments are numbered from $2; $1 is the id.
func (repo accountRepository) setFields(ctx context.Context, id, set string, args ...interface{}) (account.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return account.Account{}, account.ErrNotFound
	}
	q := "UPDATE accounts SET " + set + " WHERE id = $1 RETURNING " + accountColumns

	var row accountRow
	if err := sqlx.GetContext(ctx, repo.exec, &row, q, append([]interface{}{id}, args...)...); err != nil {
		return account.Account{}, repo.trapErr(err, "updating account")
	}
	return repo.fromRow(row), nil
}

func (repo accountRepository) SetLastLogin(ctx context.Context, id string, t time.Time) (account.Account, error) {
	return repo.setFields(ctx, id, "last_login = $2", t.UTC())
}

func (repo accountRepository) SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) (account.Account, error) {
	return repo.setFields(ctx, id, "reset_token = $2, reset_token_expires_at = $3, updated_at = $4",
		token, expiresAt.UTC(), now.UTC())
}

func (repo accountRepository) SetPassword(ctx context.Context, id string, passwordHash []byte, now time.Time) (account.Account, error) {
	return repo.setFields(ctx, id, "password_hash = $2, reset_token = NULL, reset_token_expires_at = NULL, updated_at = $3",
		passwordHash, now.UTC())
}

func (repo accountRepository) SetActive(ctx context.Context, id string, isActive bool, now time.Time) (account.Account, error) {
	return repo.setFields(ctx, id, "is_active = $2, updated_at = $3", isActive, now.UTC())
}

func (repo accountRepository) DeleteAccount(ctx context.Context, filter account.DeleteFilter) error {
	if _, err := uuid.Parse(filter.ID); err != nil {
		return account.ErrNotFound
	}
	res, err := repo.exec.ExecContext(ctx, "DELETE FROM accounts WHERE id = $1 AND ($2::text = '' OR role = $2::text)", filter.ID, filter.Role)
	if err != nil {
		return errors.Wrap(err, "deleting account")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting account")
	}
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (repo accountRepository) RedeemResetToken(ctx context.Context, token string, now time.Time, passwordHash []byte) (account.Account, error) {
	if token == "" {
		return account.Account{}, account.ErrNotFound
	}
	q := `UPDATE accounts SET
			password_hash = $1,
			reset_token = NULL,
			reset_token_expires_at = NULL,
			updated_at = $2
		WHERE reset_token = $3 AND reset_token_expires_at > $2
		RETURNING ` + accountColumns

	var row accountRow
	if err := sqlx.GetContext(ctx, repo.exec, &row, q, passwordHash, now.UTC(), token); err != nil {
		return account.Account{}, repo.trapErr(err, "redeeming reset token")
	}
	return repo.fromRow(row), nil
}
