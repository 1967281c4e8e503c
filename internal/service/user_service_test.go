package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/apperr"
	"github.com/qs3c/fbads_go_server/internal/testutil"
)

func TestUserService_List(t *testing.T) {
	svc, db := setupUsers(t)
	role := testutil.TestRole(t, db, model.RoleAnalyst)
	for i := 0; i < 3; i++ {
		u := testutil.TestUser(t, db)
		testutil.GrantRole(t, db, u.ID, role)
	}

	items, total, err := svc.List(context.Background(), dto.PageQuery{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	assert.Equal(t, []string{model.RoleAnalyst}, items[0].Roles)
}

func TestUserService_Get_SelfOrAdmin(t *testing.T) {
	svc, db := setupUsers(t)
	ctx := context.Background()
	target := testutil.TestUserWithPermissions(t, db, PermCampaignsRead)
	other := testutil.TestUser(t, db)

	plan := testutil.TestPlan(t, db, "Pro", 99)
	testutil.TestSubscription(t, db, target.ID, plan.ID)
	testutil.TestFacebookAccount(t, db, target.ID)

	detail, err := svc.Get(ctx, Actor{UserID: target.ID, Permissions: NewPermissionSet(PermCampaignsRead)}, target.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{PermCampaignsRead}, detail.Permissions)
	assert.Len(t, detail.FacebookAccounts, 1)
	require.NotNil(t, detail.Subscription)
	assert.Equal(t, plan.ID, detail.Subscription.PlanID)

	_, err = svc.Get(ctx, Actor{UserID: other.ID, Permissions: NewPermissionSet()}, target.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	detail, err = svc.Get(ctx, adminActor(other.ID), target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, detail.ID)

	_, err = svc.Get(ctx, adminActor(other.ID), 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_Get_NoSubscription(t *testing.T) {
	svc, db := setupUsers(t)
	user := testutil.TestUser(t, db)
	plan := testutil.TestPlan(t, db, "Basic", 29)
	testutil.TestSubscription(t, db, user.ID, plan.ID, testutil.WithEndDate(time.Now().Add(-time.Hour)))

	detail, err := svc.Get(context.Background(), Actor{UserID: user.ID}, user.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Subscription)
	assert.Empty(t, detail.FacebookAccounts)
}

func TestUserService_Create(t *testing.T) {
	svc, db := setupUsers(t)
	ctx := context.Background()
	testutil.TestRole(t, db, model.RoleFreeUser)
	manager := testutil.TestRole(t, db, model.RoleManager)

	info, err := svc.Create(ctx, &dto.CreateUserRequest{Email: "free@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleFreeUser}, info.Roles)

	info, err = svc.Create(ctx, &dto.CreateUserRequest{
		Email:    "mgr@example.com",
		Password: "password123",
		RoleIDs:  []int64{manager.ID, manager.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleManager}, info.Roles)

	_, err = svc.Create(ctx, &dto.CreateUserRequest{Email: "free@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = svc.Create(ctx, &dto.CreateUserRequest{Email: "bad@example.com", Password: "password123", RoleIDs: []int64{manager.ID, 4242}})
	assert.ErrorIs(t, err, ErrRoleNotFound)

	var count int64
	db.Model(&model.User{}).Where("email = ?", "bad@example.com").Count(&count)
	assert.Zero(t, count)
}

func TestUserService_Update_SelfCannotChangeAdminFields(t *testing.T) {
	svc, db := setupUsers(t)
	ctx := context.Background()
	user := testutil.TestUser(t, db)
	self := Actor{UserID: user.ID, Permissions: NewPermissionSet()}

	name := "Renamed"
	info, err := svc.Update(ctx, self, user.ID, &dto.UpdateUserRequest{
		UpdateProfileRequest: dto.UpdateProfileRequest{FirstName: &name},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", info.FirstName)

	status := model.UserStatusInactive
	_, err = svc.Update(ctx, self, user.ID, &dto.UpdateUserRequest{Status: &status})
	assert.ErrorIs(t, err, ErrAdminOnlyFields)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	other := testutil.TestUser(t, db)
	_, err = svc.Update(ctx, Actor{UserID: other.ID}, user.ID, &dto.UpdateUserRequest{
		UpdateProfileRequest: dto.UpdateProfileRequest{FirstName: &name},
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUserService_Update_AdminReplacesRoles(t *testing.T) {
	svc, db := setupUsers(t)
	ctx := context.Background()
	admin := testutil.TestUser(t, db)
	user := testutil.TestUser(t, db)

	analyst := testutil.TestRole(t, db, model.RoleAnalyst)
	creator := testutil.TestRole(t, db, model.RoleCreator)
	client := testutil.TestRole(t, db, model.RoleClient)
	testutil.GrantRole(t, db, user.ID, analyst)

	roleIDs := []int64{creator.ID, client.ID}
	email := "moved@example.com"
	status := model.UserStatusInactive
	info, err := svc.Update(ctx, adminActor(admin.ID), user.ID, &dto.UpdateUserRequest{
		Email:   &email,
		Status:  &status,
		RoleIDs: &roleIDs,
	})
	require.NoError(t, err)
	assert.Equal(t, "moved@example.com", info.Email)
	assert.Equal(t, model.UserStatusInactive, info.Status)
	assert.ElementsMatch(t, []string{model.RoleCreator, model.RoleClient}, info.Roles)

	// 角色不存在时整体不生效
	bad := []int64{analyst.ID, 4242}
	_, err = svc.Update(ctx, adminActor(admin.ID), user.ID, &dto.UpdateUserRequest{RoleIDs: &bad})
	assert.ErrorIs(t, err, ErrRoleNotFound)

	var grants []model.UserRole
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&grants).Error)
	assert.Len(t, grants, 2)

	taken := admin.Email
	_, err = svc.Update(ctx, adminActor(admin.ID), user.ID, &dto.UpdateUserRequest{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserService_ResetPassword(t *testing.T) {
	svc, db := setupUsers(t)
	ctx := context.Background()
	user := testutil.TestUser(t, db)
	require.NoError(t, db.Create(&model.Session{UserID: user.ID, RefreshToken: "s1", ExpiresAt: time.Now().Add(time.Hour)}).Error)

	require.NoError(t, svc.ResetPassword(ctx, user.ID, "admin-set-pass"))

	var count int64
	db.Model(&model.Session{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Zero(t, count)

	assert.ErrorIs(t, svc.ResetPassword(ctx, 99999, "admin-set-pass"), ErrUserNotFound)
}

func TestUserService_Delete(t *testing.T) {
	svc, db := setupUsers(t)
	ctx := context.Background()
	admin := testutil.TestUser(t, db)
	user := testutil.TestUserWithPermissions(t, db, PermCampaignsRead)
	require.NoError(t, db.Create(&model.Session{UserID: user.ID, RefreshToken: "del", ExpiresAt: time.Now().Add(time.Hour)}).Error)

	assert.ErrorIs(t, svc.Delete(ctx, adminActor(admin.ID), admin.ID), ErrDeleteSelf)

	require.NoError(t, svc.Delete(ctx, adminActor(admin.ID), user.ID))

	var users, roles, sessions int64
	db.Model(&model.User{}).Where("id = ?", user.ID).Count(&users)
	db.Model(&model.UserRole{}).Where("user_id = ?", user.ID).Count(&roles)
	db.Model(&model.Session{}).Where("user_id = ?", user.ID).Count(&sessions)
	assert.Zero(t, users)
	assert.Zero(t, roles)
	assert.Zero(t, sessions)

	assert.ErrorIs(t, svc.Delete(ctx, adminActor(admin.ID), user.ID), ErrUserNotFound)
}
