package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-study-backend/internal/domain"
)

func TestSaveConversation_InsertsRowAndMessages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c := seedConversation(t, db, "u1",
		domain.UserMessage{Content: "What is photosynthesis?", Timestamp: now},
		domain.AssistantMessage{Content: "Plants make food from light.", Timestamp: now,
			Citations: []domain.Citation{{Number: 1, ChunkID: "ch1"}}},
	)
	if c.Version != 1 || c.MessageCount != 2 || c.LastMessagePreview != "Plants make food from light." {
		t.Fatalf("unexpected in-memory aggregate after save: %+v", c)
	}

	got, err := GetConversation(ctx, db, c.ID, "u1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.Version != 1 || got.MessageCount != 2 || len(got.Messages) != 2 {
		t.Fatalf("unexpected stored aggregate: %+v", got)
	}
	if got.Messages[0].Role() != domain.RoleUser || got.Messages[1].Role() != domain.RoleAssistant {
		t.Fatalf("messages out of order: %#v", got.Messages)
	}
	if am := got.Messages[1].(domain.AssistantMessage); am.Citations[0].ChunkID != "ch1" {
		t.Fatalf("citations not persisted: %+v", am)
	}
}

func TestGetConversation_OtherOwnerIsNotFound(t *testing.T) {
	db := newTestDB(t)
	c := seedConversation(t, db, "u1")

	_, errOther := GetConversation(context.Background(), db, c.ID, "u2")
	_, errMissing := GetConversation(context.Background(), db, "nope", "u2")
	if !errors.Is(errOther, ErrNotFound) || !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for both, got %v / %v", errOther, errMissing)
	}
}

func TestSaveConversation_AppendsWithVersionCheck(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	c := seedConversation(t, db, "u1", domain.UserMessage{Content: "q1", Timestamp: now})

	// Two writers load the same version.
	a, _ := GetConversation(ctx, db, c.ID, "u1")
	b, _ := GetConversation(ctx, db, c.ID, "u1")

	a.Messages = append(a.Messages, domain.AssistantMessage{Content: "a1", Timestamp: now})
	if err := SaveConversation(ctx, db, a, 1); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	if a.Version != 2 {
		t.Fatalf("version should advance to 2, got %d", a.Version)
	}

	b.Messages = append(b.Messages, domain.AssistantMessage{Content: "b1", Timestamp: now})
	if err := SaveConversation(ctx, db, b, 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("second writer should lose with ErrVersionConflict, got %v", err)
	}

	got, _ := GetConversation(ctx, db, c.ID, "u1")
	if len(got.Messages) != 2 || got.Messages[1].Text() != "a1" || got.MessageCount != 2 {
		t.Fatalf("losing writer must not change the log: %+v", got)
	}
}

func TestListConversationsPage_OrderFiltersAndNoOverlap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		c := seedConversation(t, db, "u1")
		ids = append(ids, c.ID)
		time.Sleep(2 * time.Millisecond)
	}
	seedConversation(t, db, "u2")

	total, err := CountConversations(ctx, db, "u1", ConversationFilter{})
	if err != nil || total != 5 {
		t.Fatalf("count = %d, err = %v", total, err)
	}

	p1, err := ListConversationsPage(ctx, db, "u1", ConversationFilter{}, 0, 3)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	p2, err := ListConversationsPage(ctx, db, "u1", ConversationFilter{}, 3, 3)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(p1) != 3 || len(p2) != 2 {
		t.Fatalf("page sizes = %d,%d", len(p1), len(p2))
	}
	if p1[0].ID != ids[4] {
		t.Fatalf("most recent first: got %s want %s", p1[0].ID, ids[4])
	}
	seen := map[string]bool{}
	for _, c := range append(p1, p2...) {
		if seen[c.ID] {
			t.Fatalf("conversation %s returned twice", c.ID)
		}
		seen[c.ID] = true
	}

	if err := SetConversationStatus(ctx, db, ids[0], "u1", domain.StatusActive, domain.StatusArchived); err != nil {
		t.Fatalf("archive: %v", err)
	}
	archived, _ := ListConversationsPage(ctx, db, "u1", ConversationFilter{Status: domain.StatusArchived}, 0, 10)
	if len(archived) != 1 || archived[0].ID != ids[0] {
		t.Fatalf("status filter: %+v", archived)
	}
	none, _ := ListConversationsPage(ctx, db, "u1", ConversationFilter{Subject: domain.SubjectHindi, Grade: 8}, 0, 10)
	if len(none) != 0 {
		t.Fatalf("subject filter should exclude everything: %+v", none)
	}
	byGrade, _ := CountConversations(ctx, db, "u1", ConversationFilter{Grade: 8, Subject: domain.SubjectScience})
	if byGrade != 5 {
		t.Fatalf("grade+subject filter count = %d", byGrade)
	}
}

func TestSetConversationStatus_RequiresFromStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedConversation(t, db, "u1")

	if err := SetConversationStatus(ctx, db, c.ID, "u1", domain.StatusArchived, domain.StatusActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("restoring an active conversation should not match, got %v", err)
	}
	if err := SetConversationStatus(ctx, db, c.ID, "u2", domain.StatusActive, domain.StatusArchived); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other owner should not match, got %v", err)
	}
	if err := SetConversationStatus(ctx, db, c.ID, "u1", domain.StatusActive, domain.StatusArchived); err != nil {
		t.Fatalf("archive: %v", err)
	}
	got, _ := GetConversationHeader(ctx, db, c.ID, "u1")
	if got.Status != domain.StatusArchived || got.Version != 2 {
		t.Fatalf("unexpected row after archive: %+v", got)
	}
}

func TestUpdateConversationMetadata(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedConversation(t, db, "u1")

	meta := domain.ConversationMetadata{Grade: 9, Subject: domain.SubjectMathematics, Language: domain.LanguageHindi}
	if err := UpdateConversationMetadata(ctx, db, c.ID, "u1", 99, meta); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale version should conflict, got %v", err)
	}
	if err := UpdateConversationMetadata(ctx, db, c.ID, "u1", c.Version, meta); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := GetConversationHeader(ctx, db, c.ID, "u1")
	if got.Metadata != meta {
		t.Fatalf("metadata = %+v; want %+v", got.Metadata, meta)
	}
}

func TestGetMessageRole(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	c := seedConversation(t, db, "u1",
		domain.UserMessage{Content: "q", Timestamp: now},
		domain.AssistantMessage{Content: "a", Timestamp: now},
	)

	if r, err := GetMessageRole(ctx, db, c.ID, 0); err != nil || r != domain.RoleUser {
		t.Fatalf("position 0: %v %v", r, err)
	}
	if r, err := GetMessageRole(ctx, db, c.ID, 1); err != nil || r != domain.RoleAssistant {
		t.Fatalf("position 1: %v %v", r, err)
	}
	if _, err := GetMessageRole(ctx, db, c.ID, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing position should be ErrNotFound, got %v", err)
	}
}
