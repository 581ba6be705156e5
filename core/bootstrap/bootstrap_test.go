package bootstrap_test

import (
	"context"
	"path/filepath"
	"testing"

	"reqdesk/config"
	"reqdesk/core/bootstrap"
	"reqdesk/core/rbac"
	"reqdesk/core/store"
	"reqdesk/core/utils"
)

func TestDefaultAdminSeed(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.AppConfig{DBPath: filepath.Join(dir, "seed.db"), Pepper: "pepper"}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := store.ApplyMigrations(context.Background(), db, cfg, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if err := bootstrap.EnsureDefaultAdmin(context.Background(), db, cfg, logger); err != nil {
		t.Fatalf("seed: %v", err)
	}
	us := store.NewUsersStore(db)
	admin, err := us.FindByHandle(context.Background(), "admin")
	if err != nil || admin == nil {
		t.Fatalf("admin not created: %v", err)
	}
	if rbac.Resolve(admin.Role, admin.LegacyRole) != rbac.RoleAdministrator {
		t.Fatalf("admin role = %q", admin.Role)
	}
	if !admin.RequirePasswordChange {
		t.Fatalf("seeded admin must be forced to change the password")
	}

	// Running again is a no-op.
	if err := bootstrap.EnsureDefaultAdmin(context.Background(), db, cfg, logger); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	users, _ := us.List(context.Background())
	if len(users) != 1 {
		t.Fatalf("seed duplicated the admin: %d users", len(users))
	}
}

func TestSeedRepairsDemotedAdmin(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.AppConfig{DBPath: filepath.Join(dir, "repair.db"), Pepper: "pepper"}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := store.ApplyMigrations(context.Background(), db, cfg, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	us := store.NewUsersStore(db)
	if err := bootstrap.EnsureDefaultAdminWithStore(context.Background(), us, cfg, logger); err != nil {
		t.Fatalf("seed: %v", err)
	}
	admin, _ := us.FindByHandle(context.Background(), "admin")
	admin.Role = "user"
	if err := us.Update(context.Background(), admin); err != nil {
		t.Fatalf("demote: %v", err)
	}
	if err := bootstrap.EnsureDefaultAdminWithStore(context.Background(), us, cfg, logger); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	admin, _ = us.FindByHandle(context.Background(), "admin")
	if rbac.Resolve(admin.Role, admin.LegacyRole) != rbac.RoleAdministrator {
		t.Fatalf("admin not restored: role=%q", admin.Role)
	}
}
