package bootstrap

import (
	"context"
	"database/sql"

	"reqdesk/config"
	"reqdesk/core/auth"
	"reqdesk/core/rbac"
	"reqdesk/core/store"
	"reqdesk/core/utils"
)

// EnsureDefaultAdmin ensures the admin user exists.
func EnsureDefaultAdmin(ctx context.Context, db *sql.DB, cfg *config.AppConfig, logger *utils.Logger) error {
	us := store.NewUsersStore(db)
	return EnsureDefaultAdminWithStore(ctx, us, cfg, logger)
}

// EnsureDefaultAdminWithStore ensures the admin user exists using the
// provided store (useful outside main bootstrap).
func EnsureDefaultAdminWithStore(ctx context.Context, us store.UsersStore, cfg *config.AppConfig, logger *utils.Logger) error {
	existing, err := us.FindByHandle(ctx, "admin")
	if err != nil {
		return err
	}
	if existing != nil {
		if rbac.Resolve(existing.Role, existing.LegacyRole) != rbac.RoleAdministrator {
			existing.Role = string(rbac.RoleAdministrator)
			if err := us.Update(ctx, existing); err != nil && logger != nil {
				logger.Printf("default admin update failed: %v", err)
			}
		}
		return nil
	}
	ph := auth.MustHashPassword("admin", cfg.Pepper)
	u := &store.User{
		Handle:                "admin",
		DisplayName:           "Default Administrator",
		Role:                  string(rbac.RoleAdministrator),
		PasswordHash:          ph.Hash,
		Salt:                  ph.Salt,
		RequirePasswordChange: true,
		Active:                true,
	}
	_, err = us.Create(ctx, u)
	if err == nil && logger != nil {
		logger.Printf("default admin created; password must be changed")
	}
	return err
}
