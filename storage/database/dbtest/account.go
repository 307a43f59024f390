// Package dbtest holds the behavior every account.Repository implementation must share.
package dbtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
	"github.com/learnlink/backend/testutil"
)

// RepoFactory returns an empty repository.
type RepoFactory func(t *testing.T) account.Repository

// TestAccountRepository runs the shared account.Repository tests against newRepo.
func TestAccountRepository(t *testing.T, newRepo RepoFactory) {
	t.Run("create and get", func(t *testing.T) { testCreateAndGet(t, newRepo(t)) })
	t.Run("unique email", func(t *testing.T) { testUniqueEmail(t, newRepo(t)) })
	t.Run("unique identifier", func(t *testing.T) { testUniqueIdentifier(t, newRepo(t)) })
	t.Run("query", func(t *testing.T) { testQuery(t, newRepo(t)) })
	t.Run("update", func(t *testing.T) { testUpdate(t, newRepo(t)) })
	t.Run("targeted writes", func(t *testing.T) { testTargetedWrites(t, newRepo(t)) })
	t.Run("stale writes", func(t *testing.T) { testStaleWrites(t, newRepo(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("redeem reset token", func(t *testing.T) { testRedeemResetToken(t, newRepo(t)) })
	t.Run("concurrent create", func(t *testing.T) { testConcurrentCreate(t, newRepo(t)) })
}

func testCreateAndGet(t *testing.T, repo account.Repository) {
	ctx := context.Background()
	ada := testutil.CreateAccount(t, repo, "Ada", "ada@test.cd", "secret1", account.RoleStudent, true)

	tests := []struct {
		name    string
		filter  account.GetFilter
		wantErr error
	}{
		{name: "by ID", filter: account.GetFilter{ID: ada.ID}},
		{name: "by email", filter: account.GetFilter{Email: "ada@test.cd"}},
		{name: "by email (case-insensitive)", filter: account.GetFilter{Email: "ADA@Test.CD"}},
		{name: "by identifier", filter: account.GetFilter{Identifier: ada.Identifier}},
		{name: "unknown ID", filter: account.GetFilter{ID: uuid.NewString()}, wantErr: account.ErrNotFound},
		{name: "malformed ID", filter: account.GetFilter{ID: "lol"}, wantErr: account.ErrNotFound},
		{name: "unknown email", filter: account.GetFilter{Email: "lol@test.cd"}, wantErr: account.ErrNotFound},
		{name: "unknown identifier", filter: account.GetFilter{Identifier: "STU-000000"}, wantErr: account.ErrNotFound},
		{name: "empty filter", filter: account.GetFilter{}, wantErr: account.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetAccount(ctx, tt.filter)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ada.ID, got.ID)
			assert.Equal(t, ada.Email, got.Email)
			assert.Equal(t, ada.Identifier, got.Identifier)
			assert.Equal(t, account.RoleStudent, got.Role)
			assert.Equal(t, "JSS1", got.ClassLevel)
			assert.True(t, got.IsActive)
			assert.Equal(t, ada.PasswordHash, got.PasswordHash)
			assert.Nil(t, got.ResetTokenExpiresAt)
			assert.WithinDuration(t, ada.CreatedAt, got.CreatedAt, time.Millisecond)
		})
	}
}

func testUniqueEmail(t *testing.T, repo account.Repository) {
	ctx := context.Background()
	testutil.CreateAccount(t, repo, "Ada", "ada@test.cd", "", account.RoleStudent, true)

	now := time.Now().UTC()
	_, err := repo.CreateAccount(ctx, account.Account{
		ID: uuid.NewString(), FirstName: "Eve", LastName: "Test", Email: "ADA@test.cd",
		Role: account.RoleTeacher, Identifier: "EVE001", IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	var cerr *core.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "email", cerr.Field)
}

func testUniqueIdentifier(t *testing.T, repo account.Repository) {
	ctx := context.Background()
	ada := testutil.CreateAccount(t, repo, "Ada", "ada@test.cd", "", account.RoleStudent, true)

	now := time.Now().UTC()
	_, err := repo.CreateAccount(ctx, account.Account{
		ID: uuid.NewString(), FirstName: "Eve", LastName: "Test", Email: "eve@test.cd",
		Role: account.RoleStudent, ClassLevel: "SS1", Identifier: ada.Identifier, IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	var cerr *core.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "uniqueId", cerr.Field)

	// accounts without identifier never collide
	for _, email := range []string{"sa1@test.cd", "sa2@test.cd"} {
		_, err = repo.CreateAccount(ctx, account.Account{
			ID: uuid.NewString(), FirstName: "Super", LastName: "Admin", Email: email,
			Role: account.RoleSuperAdmin, IsActive: true, CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
	}
}

func testQuery(t *testing.T, repo account.Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	s1 := testutil.CreateAccount(t, repo, "S1", "s1@test.cd", "", account.RoleStudent, true, now.Add(1*time.Hour))
	s2 := testutil.CreateAccount(t, repo, "S2", "s2@test.cd", "", account.RoleStudent, false, now.Add(2*time.Hour))
	t1 := testutil.CreateAccount(t, repo, "T1", "t1@test.cd", "", account.RoleTeacher, true, now.Add(3*time.Hour))
	sa := testutil.CreateAccount(t, repo, "SA", "sa@test.cd", "", account.RoleSuperAdmin, true, now)

	ids := func(accs []account.Account) []string {
		out := make([]string, 0, len(accs))
		for _, a := range accs {
			out = append(out, a.ID)
		}
		return out
	}
	bPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name   string
		filter account.QueryFilter
		want   []string
	}{
		{name: "all", want: []string{sa.ID, s1.ID, s2.ID, t1.ID}},
		{name: "students", filter: account.QueryFilter{Roles: []string{account.RoleStudent}}, want: []string{s1.ID, s2.ID}},
		{
			name:   "active students",
			filter: account.QueryFilter{Roles: []string{account.RoleStudent}, IsActive: bPtr(true)},
			want:   []string{s1.ID},
		},
		{name: "inactive", filter: account.QueryFilter{IsActive: bPtr(false)}, want: []string{s2.ID}},
		{name: "staff", filter: account.QueryFilter{Roles: account.StaffRoles}, want: []string{sa.ID, t1.ID}},
		{name: "unknown role", filter: account.QueryFilter{Roles: []string{"lol"}}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryAccounts(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func testUpdate(t *testing.T, repo account.Repository) {
	ctx := context.Background()
	ada := testutil.CreateAccount(t, repo, "Ada", "ada@test.cd", "secret1", account.RoleStudent, true)
	testutil.CreateAccount(t, repo, "Eve", "eve@test.cd", "", account.RoleStudent, true)

	exp := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Millisecond)
	_, err := repo.SetResetToken(ctx, ada.ID, "tok", exp, time.Now())
	require.NoError(t, err)

	ada.FirstName = "Augusta"
	ada.Phone = "+243 810 000 000"
	ada.UpdatedAt = time.Now().UTC()
	// fields outside the profile are ignored
	ada.IsActive = false
	ada.PasswordHash = []byte("stale")
	ada.ResetToken = ""
	ada.ResetTokenExpiresAt = nil

	updated, err := repo.UpdateAccount(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, "Augusta", updated.FirstName)

	got, err := repo.GetAccount(ctx, account.GetFilter{ID: ada.ID})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", got.FirstName)
	assert.Equal(t, "+243 810 000 000", got.Phone)
	assert.True(t, got.IsActive)
	assert.NotEqual(t, []byte("stale"), got.PasswordHash)
	assert.Equal(t, "tok", got.ResetToken)
	require.NotNil(t, got.ResetTokenExpiresAt)
	assert.WithinDuration(t, exp, *got.ResetTokenExpiresAt, time.Millisecond)

	// taking someone else's email
	got.Email = "eve@test.cd"
	_, err = repo.UpdateAccount(ctx, got)
	var cerr *core.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "email", cerr.Field)

	// unknown account
	_, err = repo.UpdateAccount(ctx, account.Account{ID: uuid.NewString(), Email: "x@test.cd", Role: account.RoleTeacher})
	assert.Equal(t, account.ErrNotFound, err)
}

func testTargetedWrites(t *testing.T, repo account.Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	ada := testutil.CreateAccount(t, repo, "Ada", "ada@test.cd", "secret1", account.RoleStudent, true)

	got, err := repo.SetLastLogin(ctx, ada.ID, now)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.WithinDuration(t, now, *got.LastLogin, time.Millisecond)
	assert.Equal(t, ada.PasswordHash, got.PasswordHash)

	got, err = repo.SetResetToken(ctx, ada.ID, "tok", now.Add(time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.ResetToken)
	require.NotNil(t, got.ResetTokenExpiresAt)
	require.NotNil(t, got.LastLogin)

	got, err = repo.SetPassword(ctx, ada.ID, []byte("new-hash"), now)
	require.NoError(t, err)
	assert.Equal(t, []byte("new-hash"), got.PasswordHash)
	assert.Empty(t, got.ResetToken)
	assert.Nil(t, got.ResetTokenExpiresAt)

	got, err = repo.SetActive(ctx, ada.ID, false, now)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, []byte("new-hash"), got.PasswordHash)
	assert.Equal(t, "Ada", got.FirstName)

	for _, id := range []string{uuid.NewString(), "lol"} {
		_, err = repo.SetLastLogin(ctx, id, now)
		assert.Equal(t, account.ErrNotFound, err)
		_, err = repo.SetResetToken(ctx, id, "tok", now, now)
		assert.Equal(t, account.ErrNotFound, err)
		_, err = repo.SetPassword(ctx, id, []byte("hash"), now)
		assert.Equal(t, account.ErrNotFound, err)
		_, err = repo.SetActive(ctx, id, true, now)
		assert.Equal(t, account.ErrNotFound, err)
	}
}

// testStaleWrites interleaves a redemption between reading an Account and writing it back.
func testStaleWrites(t *testing.T, repo account.Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	ada := testutil.CreateAccount(t, repo, "Ada", "ada@test.cd", "secret1", account.RoleStudent, true)
	_, err := repo.SetResetToken(ctx, ada.ID, "tok", now.Add(time.Minute), now)
	require.NoError(t, err)

	stale, err := repo.GetAccount(ctx, account.GetFilter{ID: ada.ID})
	require.NoError(t, err)

	_, err = repo.RedeemResetToken(ctx, "tok", now, []byte("new-hash"))
	require.NoError(t, err)

	_, err = repo.SetLastLogin(ctx, stale.ID, now)
	require.NoError(t, err)
	stale.FirstName = "Augusta"
	_, err = repo.UpdateAccount(ctx, stale)
	require.NoError(t, err)
	_, err = repo.SetActive(ctx, stale.ID, true, now)
	require.NoError(t, err)

	got, err := repo.GetAccount(ctx, account.GetFilter{ID: ada.ID})
	require.NoError(t, err)
	assert.Equal(t, []byte("new-hash"), got.PasswordHash)
	assert.Empty(t, got.ResetToken)
	assert.Nil(t, got.ResetTokenExpiresAt)
	assert.Equal(t, "Augusta", got.FirstName)

	_, err = repo.RedeemResetToken(ctx, "tok", now, []byte("other-hash"))
	assert.Equal(t, account.ErrNotFound, err)
}

func testDelete(t *testing.T, repo account.Repository) {
	ctx := context.Background()
	student := testutil.CreateAccount(t, repo, "S", "s@test.cd", "", account.RoleStudent, true)
	teacher := testutil.CreateAccount(t, repo, "T", "t@test.cd", "", account.RoleTeacher, true)

	assert.Equal(t, account.ErrNotFound, repo.DeleteAccount(ctx, account.DeleteFilter{ID: student.ID, Role: account.RoleTeacher}))
	assert.Equal(t, account.ErrNotFound, repo.DeleteAccount(ctx, account.DeleteFilter{ID: uuid.NewString()}))
	assert.Equal(t, account.ErrNotFound, repo.DeleteAccount(ctx, account.DeleteFilter{ID: "lol"}))

	require.NoError(t, repo.DeleteAccount(ctx, account.DeleteFilter{ID: teacher.ID, Role: account.RoleTeacher}))
	require.NoError(t, repo.DeleteAccount(ctx, account.DeleteFilter{ID: student.ID}))

	_, err := repo.GetAccount(ctx, account.GetFilter{ID: student.ID})
	assert.Equal(t, account.ErrNotFound, err)
	_, err = repo.GetAccount(ctx, account.GetFilter{Email: "t@test.cd"})
	assert.Equal(t, account.ErrNotFound, err)

	// freed email can be reused
	testutil.CreateAccount(t, repo, "T2", "t@test.cd", "", account.RoleTeacher, true)
}

func testRedeemResetToken(t *testing.T, repo account.Repository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	withToken := func(acc account.Account, token string, exp time.Time) {
		_, err := repo.SetResetToken(ctx, acc.ID, token, exp, now)
		require.NoError(t, err)
	}
	ada := testutil.CreateAccount(t, repo, "Ada", "ada@test.cd", "", account.RoleStudent, true)
	withToken(ada, "valid", now.Add(time.Minute))
	eve := testutil.CreateAccount(t, repo, "Eve", "eve@test.cd", "", account.RoleStudent, true)
	withToken(eve, "boundary", now)

	// wrong or empty token
	_, err := repo.RedeemResetToken(ctx, "lol", now, []byte("hash"))
	assert.Equal(t, account.ErrNotFound, err)
	_, err = repo.RedeemResetToken(ctx, "", now, []byte("hash"))
	assert.Equal(t, account.ErrNotFound, err)

	// expiry is exclusive
	_, err = repo.RedeemResetToken(ctx, "boundary", now, []byte("hash"))
	assert.Equal(t, account.ErrNotFound, err)

	got, err := repo.RedeemResetToken(ctx, "valid", now, []byte("new-hash"))
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.ID)
	assert.Equal(t, []byte("new-hash"), got.PasswordHash)
	assert.Empty(t, got.ResetToken)
	assert.Nil(t, got.ResetTokenExpiresAt)

	// single use
	_, err = repo.RedeemResetToken(ctx, "valid", now, []byte("other-hash"))
	assert.Equal(t, account.ErrNotFound, err)

	stored, err := repo.GetAccount(ctx, account.GetFilter{ID: ada.ID})
	require.NoError(t, err)
	assert.Equal(t, []byte("new-hash"), stored.PasswordHash)
}

func testConcurrentCreate(t *testing.T, repo account.Repository) {
	ctx := context.Background()
	const n = 8

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := time.Now().UTC()
			_, errs[i] = repo.CreateAccount(ctx, account.Account{
				ID: uuid.NewString(), FirstName: "Ada", LastName: "Test", Email: "ada@test.cd",
				Role: account.RoleSuperAdmin, IsActive: true, CreatedAt: now, UpdatedAt: now,
			})
		}(i)
	}
	wg.Wait()

	var created, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case core.IsConflict(err):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}
