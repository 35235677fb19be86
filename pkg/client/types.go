package client

import (
	"encoding/json"
	"time"
)

// QueryRequest is a question. IdempotencyKey, when set, is sent as the
// Idempotency-Key header so a retried submission replays the stored answer.
type QueryRequest struct {
	Query          string `json:"query"`
	Grade          int    `json:"grade"`
	Subject        string `json:"subject"`
	Language       string `json:"language,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	TopK           int    `json:"top_k,omitempty"`

	IdempotencyKey string `json:"-"`
}

type Citation struct {
	Number           int     `json:"number"`
	Source           string  `json:"source"`
	Chapter          string  `json:"chapter"`
	Page             int     `json:"page"`
	Excerpt          string  `json:"excerpt"`
	Relevance        float64 `json:"relevance"`
	RelevancePercent int     `json:"relevancePercent"`
	ChunkID          string  `json:"chunkId"`
}

type SourceChunk struct {
	ChunkID          string  `json:"chunkId"`
	FullText         string  `json:"fullText"`
	Page             int     `json:"page"`
	Chapter          string  `json:"chapter"`
	Section          string  `json:"section"`
	TokenCount       int     `json:"tokenCount"`
	Relevance        float64 `json:"relevance"`
	RelevancePercent int     `json:"relevancePercent"`
}

type AnswerMetadata struct {
	Language         string  `json:"language"`
	InScope          bool    `json:"inScope"`
	LatencyMs        int64   `json:"latencyMs"`
	ModelID          string  `json:"modelId"`
	Confidence       float64 `json:"confidence"`
	TokensUsed       int     `json:"tokensUsed"`
	ChunksRetrieved  int     `json:"chunksRetrieved"`
	ProcessingTimeMs int64   `json:"processingTimeMs"`
}

// Result is one answered turn. MessageIndex is the position of the
// assistant message and is what feedback refers to.
type Result struct {
	ConversationID    string         `json:"conversationId"`
	IsNewConversation bool           `json:"isNewConversation"`
	MessageIndex      int            `json:"messageIndex"`
	Answer            string         `json:"answer"`
	Citations         []Citation     `json:"citations"`
	SourceChunks      []SourceChunk  `json:"sourceChunks"`
	Language          string         `json:"language"`
	InScope           bool           `json:"inScope"`
	Metadata          AnswerMetadata `json:"metadata"`

	// Replayed is set when the server answered from its idempotency record.
	Replayed bool `json:"-"`
}

type ConversationMetadata struct {
	Grade    int    `json:"grade"`
	Subject  string `json:"subject"`
	Language string `json:"language"`
}

// Preview is a conversation as listed in history.
type Preview struct {
	ID                 string               `json:"id"`
	Title              string               `json:"title"`
	Metadata           ConversationMetadata `json:"metadata"`
	Status             string               `json:"status"`
	MessageCount       int                  `json:"messageCount"`
	LastMessagePreview string               `json:"lastMessagePreview"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// Message is a stored turn. Assistant-only fields are empty on user
// messages; Metadata is kept raw because its shape depends on Role.
type Message struct {
	Role         string          `json:"role"`
	Content      string          `json:"content"`
	Timestamp    time.Time       `json:"timestamp"`
	Citations    []Citation      `json:"citations,omitempty"`
	SourceChunks []SourceChunk   `json:"sourceChunks,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

type Conversation struct {
	ID                 string               `json:"id"`
	UserID             string               `json:"userId"`
	Metadata           ConversationMetadata `json:"metadata"`
	Title              string               `json:"title"`
	Status             string               `json:"status"`
	Version            int64                `json:"version"`
	MessageCount       int                  `json:"messageCount"`
	LastMessagePreview string               `json:"lastMessagePreview"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
	Messages           []Message            `json:"messages"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

type HistoryGroup struct {
	Label         string    `json:"label"`
	Conversations []Preview `json:"conversations"`
}

// HistoryParams filters GET /conversation. Zero values are omitted.
type HistoryParams struct {
	Page    int
	Limit   int
	Status  string
	Subject string
	Grade   int
	Group   bool
}

type HistoryPage struct {
	Data       []Preview      `json:"data"`
	Pagination Pagination     `json:"pagination"`
	Groups     []HistoryGroup `json:"groups,omitempty"`
}

type Feedback struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	MessageIndex   int       `json:"messageIndex"`
	UserID         string    `json:"userId"`
	Rating         string    `json:"rating"`
	Comment        string    `json:"comment"`
	Reviewed       bool      `json:"reviewed"`
	CreatedAt      time.Time `json:"timestamp"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type FeedbackRequest struct {
	ConversationID string `json:"conversationId"`
	MessageIndex   int    `json:"messageIndex"`
	Rating         string `json:"rating"`
	Comment        string `json:"comment,omitempty"`
}

// FeedbackOutcome reports what SubmitFeedback did. When AlreadyRated is set
// nothing new was stored and ExistingRating holds the earlier rating.
type FeedbackOutcome struct {
	Feedback       *Feedback
	AlreadyRated   bool
	ExistingRating string
	// FromCache is set when the answer came from the local cache without a
	// round trip.
	FromCache bool
}

type FeedbackPage struct {
	Data       []Feedback `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type Profile struct {
	UserID            string    `json:"userId"`
	PreferredLanguage string    `json:"preferredLanguage"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type dataEnvelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type queryEnvelope struct {
	Success bool `json:"success"`
	Result
}
