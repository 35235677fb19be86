package inference

import (
	"errors"
	"math"
	"strings"

	"github.com/tbourn/go-study-backend/internal/domain"
)

// wireRequest is the upstream request body.
type wireRequest struct {
	Question string `json:"question"`
	Grade    int    `json:"grade"`
	Subject  string `json:"subject"`
	Language string `json:"language"`
	TopK     int    `json:"top_k"`
}

type wireCitation struct {
	Number    int     `json:"number"`
	Source    string  `json:"source"`
	Chapter   string  `json:"chapter"`
	Page      int     `json:"page"`
	Excerpt   string  `json:"excerpt"`
	Relevance float64 `json:"relevance"`
	// RelevancePercent is read but never used; the percent is always
	// derived from Relevance.
	RelevancePercent *float64 `json:"relevance_percent,omitempty"`
	ChunkID          string   `json:"chunk_id"`
}

type wireChunk struct {
	ChunkID    string  `json:"chunk_id"`
	FullText   string  `json:"full_text"`
	Page       int     `json:"page"`
	Chapter    string  `json:"chapter"`
	Section    string  `json:"section"`
	TokenCount int     `json:"token_count"`
	Relevance  float64 `json:"relevance"`
}

// wireResponse is the upstream answer body. Pointer fields distinguish
// "absent" from zero.
type wireResponse struct {
	Answer           *string        `json:"answer"`
	Citations        []wireCitation `json:"citations"`
	SourceChunks     []wireChunk    `json:"source_chunks"`
	InScope          *bool          `json:"in_scope"`
	ModelID          string         `json:"model_id"`
	Confidence       *float64       `json:"confidence"`
	TokensUsed       *int           `json:"tokens_used"`
	ChunksRetrieved  *int           `json:"chunks_retrieved"`
	ProcessingTimeMs *float64       `json:"processing_time_ms"`
}

var errMissingAnswer = errors.New("response has no answer")

func toWire(r Request) wireRequest {
	return wireRequest{
		Question: r.Query,
		Grade:    r.Grade,
		Subject:  r.Subject,
		Language: string(r.Language),
		TopK:     r.TopK,
	}
}

// fromWire validates and translates an upstream answer. A missing answer
// field is an error; every other absent field takes its zero value, except
// in_scope which defaults to true for a non-empty answer.
func fromWire(w wireResponse) (*Answer, error) {
	if w.Answer == nil {
		return nil, errMissingAnswer
	}
	ans := &Answer{
		Text:         strings.TrimSpace(*w.Answer),
		Citations:    make([]domain.Citation, 0, len(w.Citations)),
		SourceChunks: make([]domain.SourceChunk, 0, len(w.SourceChunks)),
		InScope:      true,
		ModelID:      w.ModelID,
	}
	if w.InScope != nil {
		ans.InScope = *w.InScope
	}
	if w.Confidence != nil {
		ans.Confidence = clamp01(*w.Confidence)
	}
	if w.TokensUsed != nil {
		ans.TokensUsed = *w.TokensUsed
	}
	if w.ChunksRetrieved != nil {
		ans.ChunksRetrieved = *w.ChunksRetrieved
	}
	if w.ProcessingTimeMs != nil {
		ans.ProcessingTimeMs = int64(math.Round(*w.ProcessingTimeMs))
	}

	for _, c := range w.Citations {
		rel := clamp01(c.Relevance)
		ans.Citations = append(ans.Citations, domain.Citation{
			Source:           c.Source,
			Chapter:          c.Chapter,
			Page:             c.Page,
			Excerpt:          c.Excerpt,
			Relevance:        rel,
			RelevancePercent: Percent(rel),
			ChunkID:          c.ChunkID,
		})
	}
	NumberCitations(ans.Citations)

	for _, s := range w.SourceChunks {
		rel := clamp01(s.Relevance)
		ans.SourceChunks = append(ans.SourceChunks, domain.SourceChunk{
			ChunkID:          s.ChunkID,
			FullText:         s.FullText,
			Page:             s.Page,
			Chapter:          s.Chapter,
			Section:          s.Section,
			TokenCount:       s.TokenCount,
			Relevance:        rel,
			RelevancePercent: Percent(rel),
		})
	}
	return ans, nil
}

// NumberCitations assigns 1..N in slice order, replacing any numbering
// that came from upstream.
func NumberCitations(cites []domain.Citation) {
	for i := range cites {
		cites[i].Number = i + 1
	}
}

// Percent converts a relevance in [0,1] to a whole percentage.
func Percent(relevance float64) int {
	return int(math.Round(clamp01(relevance) * 100))
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
