package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestMessage_JSONCarriesRoleAndDisjointFields(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	b, err := json.Marshal(UserMessage{Content: "What is photosynthesis?", Timestamp: ts, Language: LanguageEnglish})
	if err != nil {
		t.Fatalf("marshal user: %v", err)
	}
	var u map[string]any
	_ = json.Unmarshal(b, &u)
	if u["role"] != "user" {
		t.Fatalf("user role = %v", u["role"])
	}
	if _, ok := u["citations"]; ok {
		t.Fatalf("user message must not carry citations: %s", b)
	}

	b, err = json.Marshal(AssistantMessage{Content: "Plants make food.", Timestamp: ts})
	if err != nil {
		t.Fatalf("marshal assistant: %v", err)
	}
	if !strings.Contains(string(b), `"role":"assistant"`) ||
		!strings.Contains(string(b), `"citations":[]`) ||
		!strings.Contains(string(b), `"sourceChunks":[]`) {
		t.Fatalf("unexpected assistant json: %s", b)
	}
}

func TestDecodeMessage(t *testing.T) {
	in := AssistantMessage{
		Content:   "A",
		Citations: []Citation{{Number: 1, Source: "NCERT", Relevance: 0.9, RelevancePercent: 90}},
		Metadata:  AnswerMetadata{Language: LanguageHindi, InScope: true, LatencyMs: 12},
		Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	b, _ := json.Marshal(in)
	m, err := DecodeMessage(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := m.(AssistantMessage)
	if !ok {
		t.Fatalf("expected AssistantMessage, got %T", m)
	}
	if got.Content != "A" || len(got.Citations) != 1 || got.Metadata.Language != LanguageHindi || got.SourceChunks == nil {
		t.Fatalf("unexpected decoded message: %+v", got)
	}

	if _, err := DecodeMessage([]byte(`{"role":"system","content":"x"}`)); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if _, err := DecodeMessage([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestRecordConversion(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	rec, err := ToRecord("c1", 0, UserMessage{Content: "q", Timestamp: ts, Language: LanguageHindi})
	if err != nil {
		t.Fatalf("to record: %v", err)
	}
	if rec.Role != "user" || rec.Position != 0 || string(rec.Citations) != "[]" || string(rec.SourceChunks) != "[]" {
		t.Fatalf("unexpected user record: %+v", rec)
	}
	m, err := FromRecord(rec)
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	if um, ok := m.(UserMessage); !ok || um.Language != LanguageHindi || !um.Timestamp.Equal(ts) {
		t.Fatalf("unexpected user message: %#v", m)
	}

	am := AssistantMessage{
		Content:      "ans",
		Citations:    []Citation{{Number: 1, ChunkID: "ch1"}},
		SourceChunks: []SourceChunk{{ChunkID: "ch1", FullText: "full"}},
		Timestamp:    ts,
		Metadata:     AnswerMetadata{ModelID: "m", TokensUsed: 7},
	}
	rec, err = ToRecord("c1", 1, am)
	if err != nil {
		t.Fatalf("to record: %v", err)
	}
	m, err = FromRecord(rec)
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	got := m.(AssistantMessage)
	if got.Citations[0].ChunkID != "ch1" || got.SourceChunks[0].FullText != "full" || got.Metadata.TokensUsed != 7 {
		t.Fatalf("unexpected assistant message: %+v", got)
	}

	if _, err := FromRecord(MessageRecord{Role: "tool"}); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("  What   is\n photosynthesis? ", 100); got != "What is photosynthesis?" {
		t.Fatalf("collapse whitespace: %q", got)
	}
	long := strings.Repeat("a", 150)
	got := Preview(long, MaxTitleRunes)
	if len([]rune(got)) != MaxTitleRunes || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncation: len=%d %q", len([]rune(got)), got)
	}
	exact := strings.Repeat("क", MaxTitleRunes)
	if Preview(exact, MaxTitleRunes) != exact {
		t.Fatalf("exactly-at-limit titles must not be truncated")
	}
}
