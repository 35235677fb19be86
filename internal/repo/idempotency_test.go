package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-study-backend/internal/domain"
)

func TestGetIdempotency_EmptyKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t)
	rec, err := GetIdempotency(context.Background(), db, "u1", "query", "   ", time.Now().UTC())
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for empty key, got (%v, %v)", rec, err)
	}
}

func TestIdempotency_CreateGetDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", "query", "k1", "c1", 1, true, 200, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" || !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", "query", "k1", time.Now().UTC())
	if err != nil || got.ConversationID != "c1" || got.MessageIndex != 1 || !got.IsNew {
		t.Fatalf("get: %+v %v", got, err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "query_stream", "k1", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other scope should not match, got %v", err)
	}

	if _, err := CreateIdempotency(ctx, db, "u1", "query", "k1", "c2", 1, false, 200, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestIdempotency_ExpiredKeyIsReusable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := &domain.Idempotency{ID: "old", UserID: "u1", Scope: "query", Key: "k1", ConversationID: "c1", Status: 200, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "query", "k1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record must not be returned, got %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "query", "k1", "c2", 3, false, 200, time.Hour); err != nil {
		t.Fatalf("create over expired: %v", err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, exp := range []time.Duration{-time.Minute, -time.Hour, time.Hour} {
		rec := &domain.Idempotency{ID: string(rune('a' + i)), UserID: "u1", Scope: "query", Key: string(rune('a' + i)), ConversationID: "c", Status: 200, CreatedAt: now, ExpiresAt: now.Add(exp)}
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	n, err := PurgeExpiredIdempotency(ctx, db, now)
	if err != nil || n != 2 {
		t.Fatalf("purged %d, err %v", n, err)
	}
}
