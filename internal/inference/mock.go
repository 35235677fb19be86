package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/search"
)

const mockModelID = "mock-retriever"

// builtinCorpus is used when no corpus file is configured.
const builtinCorpus = `# Life Processes

## Photosynthesis

Photosynthesis is the process by which green plants use sunlight, water and carbon dioxide to make glucose. Oxygen is released as a by-product and chlorophyll in the leaves absorbs the light energy.

## Respiration

Respiration breaks down glucose inside cells to release energy. Aerobic respiration uses oxygen and produces carbon dioxide and water, while anaerobic respiration happens without oxygen.

# Force and Energy

## Work and Energy

Energy is the capacity to do work. The SI unit of energy and of work is the joule. Kinetic energy is the energy an object has because of its motion.

## Gravitation

Every object in the universe attracts every other object with a force called gravitation. The acceleration due to gravity near the surface of the Earth is about 9.8 metres per second squared.

# Democratic Politics

## Constitution

The Constitution of India came into effect on 26 January 1950. It lays down the fundamental rights of citizens and the structure of the government.

# Number Systems

## Rational Numbers

A rational number can be written in the form p/q where p and q are integers and q is not zero. Every integer is a rational number.
`

// Mock answers deterministically from an in-memory passage index. It never
// performs network I/O and is used for offline development.
type Mock struct {
	idx search.Index
}

// NewMock builds a Mock over the Markdown corpus at path, or over a small
// built-in corpus when path is empty.
func NewMock(path string) (*Mock, error) {
	var (
		idx search.Index
		err error
	)
	if path == "" {
		idx, err = search.NewIndexFromReader(strings.NewReader(builtinCorpus))
	} else {
		idx, err = search.NewIndexFromMarkdown(path)
	}
	if err != nil {
		return nil, fmt.Errorf("mock corpus: %w", err)
	}
	return &Mock{idx: idx}, nil
}

// NewMockFromIndex wraps an existing index.
func NewMockFromIndex(idx search.Index) *Mock { return &Mock{idx: idx} }

// Generate returns the best-matching passages as an answer. A query with no
// match is answered out of scope with no citations.
func (m *Mock) Generate(ctx context.Context, req Request) (*Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyTransport(err)
	}
	hits := m.idx.TopK(req.Query, req.TopK)

	ans := &Answer{
		Citations:       make([]domain.Citation, 0, len(hits)),
		SourceChunks:    make([]domain.SourceChunk, 0, len(hits)),
		ModelID:         mockModelID,
		ChunksRetrieved: len(hits),
	}
	if len(hits) == 0 {
		ans.Text = "I could not find this topic in the study material for your grade and subject."
		return ans, nil
	}

	ans.InScope = true
	ans.Confidence = hits[0].Score
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s [%d]", h.Text, i+1)
		ans.Citations = append(ans.Citations, domain.Citation{
			Source:           "Grade " + fmt.Sprint(req.Grade) + " " + req.Subject,
			Chapter:          h.Chapter,
			Page:             h.Ordinal,
			Excerpt:          domain.Preview(h.Text, 160),
			Relevance:        clamp01(h.Score),
			RelevancePercent: Percent(h.Score),
			ChunkID:          h.ID,
		})
		ans.SourceChunks = append(ans.SourceChunks, domain.SourceChunk{
			ChunkID:          h.ID,
			FullText:         h.Text,
			Page:             h.Ordinal,
			Chapter:          h.Chapter,
			Section:          h.Section,
			TokenCount:       h.Tokens,
			Relevance:        clamp01(h.Score),
			RelevancePercent: Percent(h.Score),
		})
		ans.TokensUsed += h.Tokens
	}
	NumberCitations(ans.Citations)
	ans.Text = b.String()
	return ans, nil
}
