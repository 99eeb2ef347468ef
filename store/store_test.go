package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"robottracker/config"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return db
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(&config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	got := Rebind(`UPDATE robot_registry SET last_lat = ?, last_lon = ? WHERE robot_id = ?`)
	want := `UPDATE robot_registry SET last_lat = $1, last_lon = $2 WHERE robot_id = $3`
	if got != want {
		t.Errorf("Rebind = %q, want %q", got, want)
	}
}

func TestQ(t *testing.T) {
	query := `UPDATE robot_registry SET went_offline = datetime('now','localtime') WHERE robot_id = ?`

	pg := &DB{dialect: postgresDialect{}, driver: "postgres"}
	if got, want := pg.Q(query), `UPDATE robot_registry SET went_offline = NOW() WHERE robot_id = $1`; got != want {
		t.Errorf("postgres Q = %q, want %q", got, want)
	}

	lite := &DB{dialect: sqliteDialect{}, driver: "sqlite"}
	if got := lite.Q(query); got != query {
		t.Errorf("sqlite Q = %q, want unchanged", got)
	}
}

func TestRobotRegistryLifecycle(t *testing.T) {
	db := testDB(t)

	if err := db.RecordRobotOnline("r1"); err != nil {
		t.Fatalf("online: %v", err)
	}
	if err := db.TouchRobot("r1", 50.02, 14.47); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err := db.GetRobotRegistration("r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "online" || got.Sessions != 1 {
		t.Errorf("after online: status=%q sessions=%d, want online/1", got.Status, got.Sessions)
	}
	if got.LastLat != 50.02 || got.LastLon != 14.47 {
		t.Errorf("last position = %v,%v, want 50.02,14.47", got.LastLat, got.LastLon)
	}
	if got.FirstSeen.IsZero() {
		t.Error("first_seen should be set")
	}

	if err := db.RecordRobotOffline("r1"); err != nil {
		t.Fatalf("offline: %v", err)
	}
	got, _ = db.GetRobotRegistration("r1")
	if got.Status != "offline" || got.WentOffline == nil {
		t.Errorf("after offline: status=%q went_offline=%v", got.Status, got.WentOffline)
	}

	if err := db.RecordRobotOnline("r1"); err != nil {
		t.Fatalf("second online: %v", err)
	}
	got, _ = db.GetRobotRegistration("r1")
	if got.Sessions != 2 || got.Status != "online" || got.WentOffline != nil {
		t.Errorf("after return: %+v, want 2 sessions, online, no went_offline", got)
	}
}

func TestMarkAllRobotsOffline(t *testing.T) {
	db := testDB(t)
	db.RecordRobotOnline("a")
	db.RecordRobotOnline("b")
	db.RecordRobotOffline("b")

	n, err := db.MarkAllRobotsOffline()
	if err != nil {
		t.Fatalf("mark offline: %v", err)
	}
	if n != 1 {
		t.Errorf("rows affected = %d, want 1", n)
	}
	list, err := db.ListRobotRegistry()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	for _, r := range list {
		if r.Status != "offline" {
			t.Errorf("%s status = %q, want offline", r.RobotID, r.Status)
		}
	}
}

func TestGetRobotRegistrationMissing(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetRobotRegistration("ghost"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestAuditLog(t *testing.T) {
	db := testDB(t)
	db.AppendAudit("robot", "r1", "online", "", "", "system")
	db.AppendAudit("robot", "r1", "evicted", "online", "offline", "admin")
	db.AppendAudit("config", "tracker", "updated", "20s", "30s", "admin")

	all, err := db.ListAuditLog(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].EntityType != "config" {
		t.Errorf("newest entry = %q, want config", all[0].EntityType)
	}

	r1, err := db.ListEntityAudit("robot", "r1")
	if err != nil {
		t.Fatalf("entity list: %v", err)
	}
	if len(r1) != 2 || r1[0].Action != "evicted" || r1[0].Actor != "admin" {
		t.Errorf("r1 audit = %+v", r1)
	}
}

func TestAdminUsers(t *testing.T) {
	db := testDB(t)
	exists, err := db.AdminUserExists()
	if err != nil || exists {
		t.Fatalf("exists = %v, err = %v; want false, nil", exists, err)
	}
	if err := db.CreateAdminUser("admin", "hash"); err != nil {
		t.Fatalf("create: %v", err)
	}
	u, err := db.GetAdminUser("admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.PasswordHash != "hash" {
		t.Errorf("hash = %q, want hash", u.PasswordHash)
	}
	if err := db.CreateAdminUser("admin", "other"); err == nil {
		t.Error("expected unique violation for duplicate username")
	}
}
