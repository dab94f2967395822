package db

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/auth"
	"github.com/diewo77/toiture-backoffice/gate"
	"github.com/diewo77/toiture-backoffice/internal/config"
	"github.com/diewo77/toiture-backoffice/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver: config.DriverSQLite,
			Path:   "file:" + t.Name() + "?mode=memory&cache=shared",
		},
	}
}

func openMigrated(t *testing.T, cfg *config.Config) *gorm.DB {
	t.Helper()
	db, err := Connect(cfg.Database, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := Migrate(db, cfg, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestConnectAndMigrateSQLite(t *testing.T) {
	cfg := testConfig(t)
	db := openMigrated(t, cfg)
	if err := Ping(db); err != nil {
		t.Errorf("ping: %v", err)
	}
	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			t.Errorf("missing table %s", table)
		}
	}
}

func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"}, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported driver error, got %v", err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	db := openMigrated(t, cfg)
	app := config.AppConfig{AdminEmail: " Admin@Toiture.fr ", AdminPassword: "secret123"}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := Seed(ctx, db, app, nil); err != nil {
			t.Fatalf("seed #%d: %v", i+1, err)
		}
	}

	var n int64
	db.Model(&models.Configuration{}).Count(&n)
	if n != 1 {
		t.Errorf("configurations = %d, want 1", n)
	}

	var acc models.Account
	if err := db.Where("email = ?", "admin@toiture.fr").First(&acc).Error; err != nil {
		t.Fatalf("admin account: %v", err)
	}
	if !acc.Confirmed() {
		t.Error("bootstrap admin must be confirmed")
	}
	if err := auth.CheckPassword(acc.PasswordHash, "secret123"); err != nil {
		t.Errorf("password not usable: %v", err)
	}

	var roles []models.UserRole
	db.Where("user_id = ?", acc.ID).Find(&roles)
	if len(roles) != 1 || roles[0].Role != gate.RoleAdmin {
		t.Errorf("roles = %+v", roles)
	}
	var profiles int64
	db.Model(&models.Profile{}).Where("id = ?", acc.ID).Count(&profiles)
	if profiles != 1 {
		t.Errorf("profiles = %d", profiles)
	}
}

func TestSeedWithoutAdminCredentials(t *testing.T) {
	cfg := testConfig(t)
	db := openMigrated(t, cfg)
	if err := Seed(context.Background(), db, config.AppConfig{AdminEmail: "a@b.fr"}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var n int64
	db.Model(&models.Account{}).Count(&n)
	if n != 0 {
		t.Errorf("no admin expected without password, got %d accounts", n)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) != 4 {
		t.Fatalf("migrations = %v", files)
	}
	body, err := fs.ReadFile(migrationFS, "migrations/000002_notify_table_change.up.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, table := range []string{"leads", "devis", "chantiers", "profiles", "user_roles"} {
		if !strings.Contains(string(body), "ON "+table+"\n") {
			t.Errorf("no trigger on %s", table)
		}
	}
}

func TestMaskDSN(t *testing.T) {
	got := MaskDSN("host=db user=u password=s3cret dbname=n")
	if strings.Contains(got, "s3cret") || !strings.Contains(got, "password=***") {
		t.Errorf("MaskDSN = %q", got)
	}
}

func TestNotifyTriggerSQL(t *testing.T) {
	sql, err := notifyTriggerSQL("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "'table_changes'") {
		t.Errorf("default channel missing:\n%s", sql)
	}
	for _, table := range []string{"leads", "devis", "chantiers", "profiles", "user_roles"} {
		if !strings.Contains(sql, "CREATE TRIGGER "+table+"_notify") {
			t.Errorf("no trigger on %s", table)
		}
	}

	sql, err = notifyTriggerSQL("toit's")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "'toit''s'") || strings.Contains(sql, "'table_changes'") {
		t.Errorf("channel not substituted:\n%s", sql)
	}
}

func TestMigrateSkipsTriggerOffPostgres(t *testing.T) {
	cfg := testConfig(t)
	cfg.Realtime = config.RealtimeConfig{Mode: config.RealtimePostgres, Channel: "table_changes"}
	// sqlite has no plpgsql; installing the trigger here would fail
	openMigrated(t, cfg)
}
