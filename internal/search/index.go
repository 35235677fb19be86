// Package search provides a simple, deterministic, concurrency-safe in-memory
// passage index built from Markdown study material. It backs the offline
// mock answer generator:
//
//   - Markdown headings ("#", "##") become the chapter and section of the
//     passages below them
//   - Every passage gets a stable ordinal and id derived from document order
//   - Unicode-aware tokenization with optional stop-word removal
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// passage's token set: score = |Q ∩ P| / |Q ∪ P|.
package search

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Passage is one indexed paragraph and where it sits in the source.
type Passage struct {
	ID      string
	Ordinal int // 1-based position among indexed passages
	Chapter string
	Section string
	Text    string
	Tokens  int // number of distinct tokens
}

// Result is a ranked passage with its similarity score in (0,1].
type Result struct {
	Passage
	Score float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minParagraphRunes int
	stopwords         map[string]struct{}
	maxDocs           int
}

func defaultConfig() config {
	return config{
		minParagraphRunes: 40,
		stopwords:         nil,
		maxDocs:           0,
	}
}

func WithMinParagraphRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minParagraphRunes = n
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	passage Passage
	tokens  map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// section is a raw paragraph together with the headings in effect above it.
type section struct {
	chapter string
	heading string
	text    string
}

// NewIndexFromMarkdown builds an Index by reading and preparing the Markdown
// at path.
func NewIndexFromMarkdown(path string, opts ...Option) (Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return &index{cfg: defaultConfig(), docs: nil}, err
	}
	return NewIndexFromReader(bytes.NewReader(b), opts...)
}

// NewIndexFromReader builds an Index from UTF-8 Markdown provided by r.
// The reader is fully consumed; tables are flattened and paragraphs are
// split on blank lines.
func NewIndexFromReader(r io.Reader, opts ...Option) (Index, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	all, err := io.ReadAll(r)
	if err != nil {
		return &index{cfg: cfg, docs: nil}, err
	}
	prepared, err := PrepareMarkdown(all)
	if err != nil {
		return &index{cfg: cfg, docs: nil}, err
	}
	return buildIndex(splitSections(prepared), cfg), nil
}

// NewIndexFromStrings builds an Index directly from a slice of paragraphs
// that have no chapter information.
func NewIndexFromStrings(paragraphs []string, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	secs := make([]section, 0, len(paragraphs))
	for _, p := range paragraphs {
		secs = append(secs, section{text: p})
	}
	return buildIndex(secs, cfg)
}

func buildIndex(secs []section, cfg config) *index {
	docs := make([]doc, 0, len(secs))
	for _, s := range secs {
		t := strings.TrimSpace(normalizeWhitespace(s.text))
		if t == "" {
			continue
		}
		if cfg.minParagraphRunes > 0 && utf8.RuneCountInString(t) < cfg.minParagraphRunes {
			continue
		}
		toks := tokenize(t, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		ord := len(docs) + 1
		docs = append(docs, doc{
			passage: Passage{
				ID:      fmt.Sprintf("p%04d", ord),
				Ordinal: ord,
				Chapter: s.chapter,
				Section: s.heading,
				Text:    t,
				Tokens:  len(toks),
			},
			tokens: toks,
		})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

// Len returns the number of indexed passages.
func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k best-matching passages by Jaccard similarity.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 {
		return nil
	}
	if strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		d        *doc
		score    float64
		lenRunes int
	}

	buf := make([]scored, 0, min(k*4, len(i.docs)))
	for n := range i.docs {
		d := &i.docs[n]
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + d.passage.Tokens - over)
		if union <= 0 {
			continue
		}
		score := float64(over) / union
		if score <= 0 {
			continue
		}
		buf = append(buf, scored{
			d:        d,
			score:    score,
			lenRunes: utf8.RuneCountInString(d.passage.Text),
		})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		return buf[a].d.passage.Ordinal < buf[b].d.passage.Ordinal
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for i := 0; i < k; i++ {
		out[i] = Result{Passage: buf[i].d.passage, Score: buf[i].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}[\p{L}\p{M}]*\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

var paraSplitRE = regexp.MustCompile(`\n\s*\n`)

// splitSections splits prepared Markdown into paragraphs, tracking the
// most recent "#" heading as chapter and "##"/"###" heading as section.
// Heading lines are consumed and never indexed themselves.
func splitSections(all []byte) []section {
	chunks := paraSplitRE.Split(string(all), -1)
	out := make([]section, 0, len(chunks))
	var chapter, heading string
	for _, c := range chunks {
		var body []string
		for _, line := range strings.Split(c, "\n") {
			t := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(t, "# "):
				chapter = strings.TrimSpace(t[2:])
				heading = ""
			case strings.HasPrefix(t, "## "), strings.HasPrefix(t, "### "):
				heading = strings.TrimSpace(strings.TrimLeft(t, "#"))
			case t != "":
				body = append(body, t)
			}
		}
		if len(body) == 0 {
			continue
		}
		out = append(out, section{chapter: chapter, heading: heading, text: strings.Join(body, "\n")})
	}
	return out
}
