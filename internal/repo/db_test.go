package repo

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-study-backend/internal/domain"
)

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	base := t.TempDir()
	bad := filepath.Join(base, "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}

	if !errors.Is(err, fs.ErrNotExist) || !strings.HasPrefix(err.Error(), "sqlite dir:") {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpen_Drivers(t *testing.T) {
	if _, err := Open("oracle", "", ""); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if _, err := Open("postgres", "", "  "); err == nil {
		t.Fatalf("expected error for empty postgres dsn")
	}

	path := filepath.Join(t.TempDir(), "app.db")
	db, err := Open("sqlite", path, "")
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	_ = sqlDB.Close()
}

func TestOpenSQLite_SetsPragmas_Pool_AndAutoMigrate(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "app.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	var (
		journalMode string
		syncVal     int
		fkOn        int
		busyMS      int
	)
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}
	if err := db.Raw("PRAGMA synchronous;").Row().Scan(&syncVal); err != nil {
		t.Fatalf("PRAGMA synchronous: %v", err)
	}
	if syncVal != 1 {
		t.Fatalf("expected synchronous=1 (NORMAL), got %d", syncVal)
	}
	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fkOn != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fkOn)
	}
	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if busyMS != 5000 {
		t.Fatalf("expected busy_timeout=5000, got %d", busyMS)
	}
	if stats := sqlDB.Stats(); stats.MaxOpenConnections != 10 {
		t.Fatalf("expected MaxOpenConnections=10, got %d", stats.MaxOpenConnections)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&domain.Conversation{}, &domain.MessageRecord{}, &domain.Feedback{}, &domain.UserProfile{}, &domain.Idempotency{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	now := time.Now().UTC()
	idem := &domain.Idempotency{ID: "i1", Key: "k1", UserID: "u1", Scope: "query", ConversationID: "c1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(idem).Error; err != nil {
		t.Fatalf("insert idempotency: %v", err)
	}
}

func TestOpenSQLite_StatementLogGoesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	if _, err := GetProfile(context.Background(), db, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetProfile: %v", err)
	}
	if strings.Contains(buf.String(), "record not found") {
		t.Fatalf("missing row was logged: %s", buf.String())
	}

	now := time.Now().UTC()
	rec := domain.Idempotency{ID: "i1", Key: "private-key-7731", UserID: "u1", Scope: "query", ConversationID: "c1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := rec
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected duplicate insert to fail")
	}

	out := buf.String()
	if !strings.Contains(out, `"component":"gorm"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("failed statement not in zerolog output: %q", out)
	}
	if strings.Contains(out, "private-key-7731") {
		t.Fatalf("bind value leaked into log: %s", out)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Fatalf("nil is not a violation")
	}
	if !isUniqueViolation(gorm.ErrDuplicatedKey) {
		t.Fatalf("gorm.ErrDuplicatedKey should be a violation")
	}
	if !isUniqueViolation(errString("UNIQUE constraint failed: feedback.user_id")) {
		t.Fatalf("sqlite text should be a violation")
	}
	if !isUniqueViolation(errString(`ERROR: duplicate key value violates unique constraint "ux_feedback_conv_msg_user" (SQLSTATE 23505)`)) {
		t.Fatalf("postgres text should be a violation")
	}
	if isUniqueViolation(errString("disk I/O error")) {
		t.Fatalf("unrelated errors are not violations")
	}
}

type errString string

func (e errString) Error() string { return string(e) }

// Compile-time guard to ensure signature stability.
var _ func(string) (*gorm.DB, error) = OpenSQLite
