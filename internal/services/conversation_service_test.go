package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/repo"
)

func TestConversationService_Get(t *testing.T) {
	db := newSvcDB(t)
	s := &ConversationService{DB: db, Repo: repo.Store{}}
	c := seedTurns(t, db, "u1", 2)

	got, err := s.Get(context.Background(), "u1", c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 4 || got.Messages[3].Text() != "answer 1" {
		t.Fatalf("messages = %+v", got.Messages)
	}

	_, errForeign := s.Get(context.Background(), "u2", c.ID)
	_, errMissing := s.Get(context.Background(), "u1", "nope")
	if !errors.Is(errForeign, ErrNotFound) || !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("foreign=%v missing=%v", errForeign, errMissing)
	}
	if errForeign.Error() != errMissing.Error() {
		t.Fatal("foreign and missing conversations must be indistinguishable")
	}
}

func TestConversationService_ArchiveRestore(t *testing.T) {
	db := newSvcDB(t)
	s := &ConversationService{DB: db, Repo: repo.Store{}}
	ctx := context.Background()
	c := seedTurns(t, db, "u1", 1)

	if err := s.Restore(ctx, "u1", c.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("restoring an active conversation: %v", err)
	}
	if err := s.Archive(ctx, "u1", c.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got, _ := s.Get(ctx, "u1", c.ID)
	if got.Status != domain.StatusArchived {
		t.Fatalf("status = %q", got.Status)
	}
	if len(got.Messages) != 2 {
		t.Fatal("archival must keep messages")
	}
	if err := s.Archive(ctx, "u1", c.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("archiving twice: %v", err)
	}
	if err := s.Restore(ctx, "u1", c.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, _ = s.Get(ctx, "u1", c.ID)
	if got.Status != domain.StatusActive {
		t.Fatalf("status = %q", got.Status)
	}

	if err := s.Archive(ctx, "u2", c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign archive: %v", err)
	}
}

func TestConversationService_UpdateSettings(t *testing.T) {
	db := newSvcDB(t)
	s := &ConversationService{DB: db, Repo: repo.Store{}}
	ctx := context.Background()
	c := seedTurns(t, db, "u1", 1)

	grade, subject, lang := 9, "maths", "hindi"
	got, err := s.UpdateSettings(ctx, "u1", c.ID, SettingsPatch{Grade: &grade, Subject: &subject, Language: &lang})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	want := domain.ConversationMetadata{Grade: 9, Subject: domain.SubjectMathematics, Language: domain.LanguageHindi}
	if got.Metadata != want {
		t.Fatalf("metadata = %+v", got.Metadata)
	}
	if got.Version != c.Version+1 {
		t.Fatalf("version = %d, want %d", got.Version, c.Version+1)
	}

	if _, err := s.UpdateSettings(ctx, "u1", c.ID, SettingsPatch{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty patch: %v", err)
	}
	bad := 12
	if _, err := s.UpdateSettings(ctx, "u1", c.ID, SettingsPatch{Grade: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad grade: %v", err)
	}
	badSub := "art"
	if _, err := s.UpdateSettings(ctx, "u1", c.ID, SettingsPatch{Subject: &badSub}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad subject: %v", err)
	}
	if _, err := s.UpdateSettings(ctx, "u2", c.ID, SettingsPatch{Grade: &grade}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign update: %v", err)
	}
}
