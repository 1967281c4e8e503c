package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/testutil"
)

func TestUserRepository_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	user := &model.User{Email: "new@example.com", PasswordHash: "hash", Status: model.UserStatusActive}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotZero(t, user.ID)

	// 邮箱唯一
	dup := &model.User{Email: "new@example.com", PasswordHash: "hash"}
	assert.Error(t, repo.Create(context.Background(), dup))
}

func TestUserRepository_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	created := testutil.TestUser(t, db)

	found, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, found.Email)

	_, err = repo.GetByID(context.Background(), 99999)
	assert.Error(t, err)
}

func TestUserRepository_GetByIDWithRoles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db)
	testutil.GrantRole(t, db, user.ID, testutil.TestRole(t, db, "Analyst"))
	testutil.GrantRole(t, db, user.ID, testutil.TestRole(t, db, "Client"))

	found, err := repo.GetByIDWithRoles(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, found.Roles, 2)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	testutil.TestUser(t, db, testutil.WithEmail("unique@example.com"))

	found, err := repo.GetByEmail(context.Background(), "unique@example.com")
	require.NoError(t, err)
	assert.Equal(t, "unique@example.com", found.Email)

	exists, err := repo.ExistsByEmail(context.Background(), "unique@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByEmail(context.Background(), "missing@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepository_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	for i := 0; i < 5; i++ {
		testutil.TestUser(t, db)
	}

	users, total, err := repo.List(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, users, 2)

	users, _, err = repo.List(context.Background(), 4, 2)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserRepository_ResetTokens(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Now()

	expired := testutil.TestUser(t, db)
	token := "expired-token"
	past := now.Add(-time.Hour)
	require.NoError(t, repo.UpdateFields(ctx, expired.ID, map[string]interface{}{
		"password_reset_token":   token,
		"password_reset_expires": past,
	}))

	valid := testutil.TestUser(t, db)
	future := now.Add(time.Hour)
	require.NoError(t, repo.UpdateFields(ctx, valid.ID, map[string]interface{}{
		"password_reset_token":   "valid-token",
		"password_reset_expires": future,
	}))

	found, err := repo.GetByResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, expired.ID, found.ID)

	count, err := repo.CountExpiredResetTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	cleared, err := repo.ClearExpiredResetTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	_, err = repo.GetByResetToken(ctx, token)
	assert.Error(t, err)
	_, err = repo.GetByResetToken(ctx, "valid-token")
	assert.NoError(t, err)
}
