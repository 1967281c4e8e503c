package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/testutil"
)

func setupRBAC(t *testing.T) (*RBACService, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	return newRBAC(db, newRepos(db)), db
}

func TestRBACService_ResolvePermissions_Union(t *testing.T) {
	svc, db := setupRBAC(t)
	user := testutil.TestUser(t, db)

	analyst := testutil.TestRole(t, db, "analyst_x", PermCampaignsRead, PermAnalyticsRead)
	creator := testutil.TestRole(t, db, "creator_x", PermCampaignsRead, PermCampaignsWrite)
	testutil.GrantRole(t, db, user.ID, analyst)
	testutil.GrantRole(t, db, user.ID, creator)

	set, err := svc.ResolvePermissions(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{PermAnalyticsRead, PermCampaignsRead, PermCampaignsWrite}, set.Slice())
	assert.True(t, set.Has(PermCampaignsWrite))
	assert.False(t, set.Has(PermUsersRead))
}

func TestRBACService_ResolvePermissions_Empty(t *testing.T) {
	svc, db := setupRBAC(t)
	ctx := context.Background()
	noRoles := testutil.TestUser(t, db)

	tests := []struct {
		name   string
		userID int64
	}{
		{"no roles", noRoles.ID},
		{"missing user", 424242},
		{"zero id", 0},
		{"negative id", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := svc.ResolvePermissions(ctx, tt.userID)
			require.NoError(t, err)
			assert.NotNil(t, set)
			assert.Empty(t, set)
		})
	}
}

func TestRBACService_ResolvePermissions_IsolatedPerUser(t *testing.T) {
	svc, db := setupRBAC(t)
	a := testutil.TestUserWithPermissions(t, db, PermUsersRead)
	b := testutil.TestUserWithPermissions(t, db, PermBillingRead)

	set, err := svc.ResolvePermissions(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{PermUsersRead}, set.Slice())

	set, err = svc.ResolvePermissions(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{PermBillingRead}, set.Slice())
}

func TestHasPermission(t *testing.T) {
	set := NewPermissionSet(PermUsersRead, PermUsersRead, PermCampaignsRead)

	assert.True(t, HasPermission(set, PermUsersRead))
	assert.False(t, HasPermission(set, PermUsersWrite))
	assert.False(t, HasPermission(nil, PermUsersRead))
	assert.False(t, HasPermission(PermissionSet{}, PermUsersRead))
	assert.Len(t, set, 2)
}

func TestRBACService_Seed(t *testing.T) {
	svc, db := setupRBAC(t)
	ctx := context.Background()

	result, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Roles)
	assert.Equal(t, 17, result.Permissions)
	assert.Equal(t, 2, result.Users)
	assert.Equal(t, 2, result.Plans)

	// 第二次执行不产生重复数据
	result, err = svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Users)

	var roles, perms, grants, plans, users int64
	db.Model(&model.Role{}).Count(&roles)
	db.Model(&model.Permission{}).Count(&perms)
	db.Model(&model.UserRole{}).Count(&grants)
	db.Model(&model.SubscriptionPlan{}).Count(&plans)
	db.Model(&model.User{}).Count(&users)
	assert.Equal(t, int64(7), roles)
	assert.Equal(t, int64(17), perms)
	assert.Equal(t, int64(2), grants)
	assert.Equal(t, int64(2), plans)
	assert.Equal(t, int64(2), users)

	var admin model.User
	require.NoError(t, db.Where("email = ?", "admin@example.com").First(&admin).Error)
	set, err := svc.ResolvePermissions(ctx, admin.ID)
	require.NoError(t, err)
	assert.Len(t, set, 17)

	var demo model.User
	require.NoError(t, db.Where("email = ?", "demo@example.com").First(&demo).Error)
	set, err = svc.ResolvePermissions(ctx, demo.ID)
	require.NoError(t, err)
	assert.True(t, set.Has(PermUsersWrite))
	assert.False(t, set.Has(PermUsersDelete))
}

func TestRBACService_Seed_RoleMatrix(t *testing.T) {
	svc, db := setupRBAC(t)
	ctx := context.Background()
	_, err := svc.Seed(ctx)
	require.NoError(t, err)

	permsOf := func(roleName string) PermissionSet {
		user := testutil.TestUser(t, db)
		role, err := newRepos(db).rbac.GetRoleByName(ctx, roleName)
		require.NoError(t, err)
		testutil.GrantRole(t, db, user.ID, role)
		set, err := svc.ResolvePermissions(ctx, user.ID)
		require.NoError(t, err)
		return set
	}

	free := permsOf(model.RoleFreeUser)
	assert.True(t, free.Has(PermBillingRead))
	assert.True(t, free.Has(PermSubscriptionsWrite))
	assert.False(t, free.Has(PermCampaignsWrite))
	assert.False(t, free.Has(PermAnalyticsExport))

	paid := permsOf(model.RolePaidUser)
	assert.True(t, paid.Has(PermCampaignsWrite))
	assert.True(t, paid.Has(PermAdLibraryWrite))
	assert.True(t, paid.Has(PermAnalyticsExport))
	assert.False(t, paid.Has(PermUsersRead))

	client := permsOf(model.RoleClient)
	assert.Equal(t, []string{PermAnalyticsRead, PermCampaignsRead}, client.Slice())
}
