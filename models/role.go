package models

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/utils"
)

type Role struct {
	ID          int       `gorm:"primary_key" json:"id"`
	OwnerId     string    `gorm:"index;not null" json:"owner_id" binding:"required"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Description string    `gorm:"type:text" json:"description"`
	Permissions string    `gorm:"type:text" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRole struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

/*
caches:
	RolePerms:$ownerId:$roleName
*/

func rolePermsCacheKey(ownerId string, roleName string) string {
	return "RolePerms:" + ownerId + ":" + roleName
}

// PermissionList decodes the JSON-encoded permission names.
func (r *Role) PermissionList() []string {
	var perms []string
	if r.Permissions == "" {
		return perms
	}
	if err := json.Unmarshal([]byte(r.Permissions), &perms); err != nil {
		return nil
	}
	return perms
}

func (r *Role) RemoveInstanceRedis() error {
	return config.RemoveRedisKey(rolePermsCacheKey(r.OwnerId, r.Name))
}

func CreateRole(ctx context.Context, ownerId string, input *NewRole) (*Role, error) {

	db := config.GetDB()

	if err := utils.ValidateUnique[Role](ctx, ownerId, "name", input.Name, 0); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(input.Permissions)
	if err != nil {
		return nil, err
	}
	role := Role{
		OwnerId:     ownerId,
		Name:        input.Name,
		Description: input.Description,
		Permissions: string(encoded),
	}
	if err := db.WithContext(ctx).Create(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func UpdateRole(ctx context.Context, ownerId string, id int, input *NewRole) (*Role, error) {

	db := config.GetDB()

	role, err := utils.FetchModel[Role](ctx, ownerId, id)
	if err != nil {
		return nil, err
	}

	if err := utils.ValidateUnique[Role](ctx, ownerId, "name", input.Name, id); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(input.Permissions)
	if err != nil {
		return nil, err
	}

	// permission cache may be keyed by the old name
	if err := role.RemoveInstanceRedis(); err != nil {
		return nil, err
	}

	role.Name = input.Name
	role.Description = input.Description
	role.Permissions = string(encoded)
	if err := db.WithContext(ctx).Save(role).Error; err != nil {
		return nil, err
	}
	return role, nil
}

func DeleteRole(ctx context.Context, ownerId string, id int) (*Role, error) {

	db := config.GetDB()

	role, err := utils.FetchModel[Role](ctx, ownerId, id)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Delete(role).Error; err != nil {
		return nil, err
	}
	if err := role.RemoveInstanceRedis(); err != nil {
		return nil, err
	}
	return role, nil
}

func ListRoles(ctx context.Context, ownerId string) ([]*Role, error) {
	return utils.FetchAllModels[Role](ctx, ownerId)
}

// GetRolePermissions resolves a role's permission names, redis or db.
// Returns ErrorRecordNotFound when no such role exists for the owner.
func GetRolePermissions(ctx context.Context, ownerId string, roleName string) ([]string, error) {

	var perms []string
	exists, err := config.GetRedisObject(rolePermsCacheKey(ownerId, roleName), &perms)
	if err != nil {
		return nil, err
	}
	if exists {
		return perms, nil
	}

	db := config.GetDB()
	var role Role
	if err := db.WithContext(ctx).Where("owner_id = ? AND name = ?", ownerId, roleName).First(&role).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	perms = role.PermissionList()
	if err := config.SetRedisObject(rolePermsCacheKey(ownerId, roleName), &perms, 10*time.Minute); err != nil {
		return nil, err
	}
	return perms, nil
}

// RoleHasPermission reports whether roleName grants the permission for the
// owner. The Admin role is not special-cased here; the middleware
// short-circuits it before this lookup.
func RoleHasPermission(ctx context.Context, ownerId string, roleName string, permission string) (bool, error) {
	perms, err := GetRolePermissions(ctx, ownerId, roleName)
	if err != nil {
		return false, err
	}
	return slices.Contains(perms, permission), nil
}
