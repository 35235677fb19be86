package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-study-backend/internal/domain"
)

func TestCreateFeedback_Error_NoTable(t *testing.T) {
	db := newTestDB(t, false)
	err := CreateFeedback(context.Background(), db, &domain.Feedback{ConversationID: "c1", MessageIndex: 1, UserID: "u1", Rating: domain.RatingPositive})
	if err == nil {
		t.Fatalf("expected error when feedback table is missing")
	}
}

func TestCreateFeedback_DuplicateTuple(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedConversation(t, db, "u1")

	first := &domain.Feedback{ConversationID: c.ID, MessageIndex: 1, UserID: "u1", Rating: domain.RatingPositive, Comment: "clear"}
	if err := CreateFeedback(ctx, db, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("id/timestamps not assigned: %+v", first)
	}

	second := &domain.Feedback{ConversationID: c.ID, MessageIndex: 1, UserID: "u1", Rating: domain.RatingNegative}
	if err := CreateFeedback(ctx, db, second); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := FindFeedback(ctx, db, c.ID, 1, "u1")
	if err != nil || got.Rating != domain.RatingPositive {
		t.Fatalf("existing record should keep first rating: %+v %v", got, err)
	}
}

func TestUpdateAndDeleteFeedback_OwnerOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedConversation(t, db, "u1")
	fb := &domain.Feedback{ConversationID: c.ID, MessageIndex: 1, UserID: "u1", Rating: domain.RatingPositive}
	if err := CreateFeedback(ctx, db, fb); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := UpdateFeedback(ctx, db, fb.ID, "u2", domain.RatingNegative, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update by other user should be ErrNotFound, got %v", err)
	}
	if err := UpdateFeedback(ctx, db, fb.ID, "u1", domain.RatingNegative, "unclear"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := GetFeedback(ctx, db, fb.ID, "u1")
	if got.Rating != domain.RatingNegative || got.Comment != "unclear" {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := DeleteFeedback(ctx, db, fb.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete by other user should be ErrNotFound, got %v", err)
	}
	if err := DeleteFeedback(ctx, db, fb.ID, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetFeedback(ctx, db, fb.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("feedback should be gone, got %v", err)
	}
}

func TestListFeedback(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedConversation(t, db, "u1")

	for i, r := range []string{domain.RatingPositive, domain.RatingNegative, domain.RatingPositive} {
		fb := &domain.Feedback{ConversationID: c.ID, MessageIndex: 2*i + 1, UserID: "u1", Rating: r}
		if err := CreateFeedback(ctx, db, fb); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	_ = CreateFeedback(ctx, db, &domain.Feedback{ConversationID: c.ID, MessageIndex: 1, UserID: "u2", Rating: domain.RatingNegative})

	total, _ := CountFeedbackByUser(ctx, db, "u1", "")
	positives, _ := CountFeedbackByUser(ctx, db, "u1", domain.RatingPositive)
	if total != 3 || positives != 2 {
		t.Fatalf("counts total=%d positives=%d", total, positives)
	}
	page, err := ListFeedbackByUserPage(ctx, db, "u1", domain.RatingPositive, 0, 10)
	if err != nil || len(page) != 2 {
		t.Fatalf("filtered page: %d %v", len(page), err)
	}

	inConv, err := ListFeedbackByConversation(ctx, db, c.ID, "u1")
	if err != nil || len(inConv) != 3 || inConv[0].MessageIndex != 1 || inConv[2].MessageIndex != 5 {
		t.Fatalf("by conversation: %+v %v", inConv, err)
	}
}
