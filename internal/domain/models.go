// Package domain defines the persistence models for conversations, their
// message log, feedback and user profiles. These types are mapped with GORM
// and form the core data layer of the study assistant.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Conversation status values. Transitions are active -> archived -> active.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Rating values accepted by the feedback ledger.
const (
	RatingPositive = "positive"
	RatingNegative = "negative"
)

// MaxTitleRunes bounds the derived conversation title.
const MaxTitleRunes = 100

// MaxCommentRunes bounds a feedback comment.
const MaxCommentRunes = 500

// ConversationMetadata is the (grade, subject, language) context a
// conversation was created for. It only changes through explicit settings
// updates.
type ConversationMetadata struct {
	Grade    int      `json:"grade"    gorm:"not null;check:grade BETWEEN 5 AND 10"`
	Subject  Subject  `json:"subject"  gorm:"type:varchar(32);not null;index:idx_conv_owner_filters,priority:3"`
	Language Language `json:"language" gorm:"type:varchar(16);not null"`
}

// Conversation is an ordered thread of turns owned by a single user.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: owner identity; every lookup is scoped by it.
//   - Metadata: grade/subject/language context (embedded columns).
//   - Title: derived once from the first user message.
//   - Status: "active" or "archived" (archival is the only delete primitive).
//   - Version: compare-and-swap counter bumped by every aggregate save.
//   - MessageCount / LastMessagePreview: denormalized for history listings.
//   - Messages: the turn log, loaded from message rows (not a column).
type Conversation struct {
	ID                 string               `json:"id"                 gorm:"type:char(36);primaryKey"`
	UserID             string               `json:"userId"             gorm:"type:varchar(64);not null;index:idx_conv_owner_filters,priority:1"`
	Metadata           ConversationMetadata `json:"metadata"           gorm:"embedded"`
	Title              string               `json:"title"              gorm:"type:varchar(128);not null;default:''"`
	Status             string               `json:"status"             gorm:"type:varchar(16);not null;default:'active';index:idx_conv_owner_filters,priority:2;check:status IN ('active','archived')"`
	Version            int64                `json:"version"            gorm:"not null;default:0"`
	MessageCount       int                  `json:"messageCount"       gorm:"not null;default:0"`
	LastMessagePreview string               `json:"lastMessagePreview" gorm:"type:varchar(256);not null;default:''"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"          gorm:"index"`

	Messages []Message `json:"messages" gorm:"-"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// MessageRecord is the stored form of one Message. Position is the
// 0-based index of the turn inside its conversation and is what feedback
// refers to as messageIndex; rows are only ever appended.
type MessageRecord struct {
	ID             string         `gorm:"type:char(36);primaryKey"`
	ConversationID string         `gorm:"type:char(36);not null;uniqueIndex:ux_message_conv_pos,priority:1"`
	Position       int            `gorm:"not null;uniqueIndex:ux_message_conv_pos,priority:2"`
	Role           string         `gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content        string         `gorm:"type:text;not null"`
	Citations      datatypes.JSON `gorm:"not null"`
	SourceChunks   datatypes.JSON `gorm:"not null"`
	Metadata       datatypes.JSON `gorm:"not null"`
	CreatedAt      time.Time

	// Conversation is the owning aggregate. Rows are cascade-deleted with it.
	Conversation Conversation `gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MessageRecord.
func (MessageRecord) TableName() string { return "conversation_messages" }

// Feedback is one user's rating of one assistant message. The tuple
// (conversation_id, message_index, user_id) is unique at the storage level.
type Feedback struct {
	ID             string    `json:"id"             gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversationId" gorm:"type:char(36);not null;uniqueIndex:ux_feedback_conv_msg_user,priority:1"`
	MessageIndex   int       `json:"messageIndex"   gorm:"not null;uniqueIndex:ux_feedback_conv_msg_user,priority:2"`
	UserID         string    `json:"userId"         gorm:"type:varchar(64);not null;index;uniqueIndex:ux_feedback_conv_msg_user,priority:3"`
	Rating         string    `json:"rating"         gorm:"type:varchar(16);not null;check:rating IN ('positive','negative')"`
	Comment        string    `json:"comment"        gorm:"type:varchar(2048);not null;default:''"`
	Reviewed       bool      `json:"reviewed"       gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"timestamp"`
	UpdatedAt      time.Time `json:"updatedAt"`

	// Conversation is the rated conversation; feedback goes with it.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }

// UserProfile stores per-user preferences. PreferredLanguage, when set,
// overrides the language a query asks for.
type UserProfile struct {
	UserID            string    `json:"userId"            gorm:"type:varchar(64);primaryKey"`
	PreferredLanguage Language  `json:"preferredLanguage" gorm:"type:varchar(16);not null;default:''"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// TableName returns the database table name for UserProfile.
func (UserProfile) TableName() string { return "user_profiles" }

// Citation is a numbered reference to a source excerpt shown with an
// assistant answer. Number is assigned locally as 1..N.
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

// SourceChunk is the full retrieved passage behind one or more citations.
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

// AnswerMetadata describes how an assistant answer was produced. Counters
// the upstream omitted are zero, never null.
type AnswerMetadata struct {
	Language         Language `json:"language"`
	InScope          bool     `json:"inScope"`
	LatencyMs        int64    `json:"latencyMs"`
	ModelID          string   `json:"modelId"`
	Confidence       float64  `json:"confidence"`
	TokensUsed       int      `json:"tokensUsed"`
	ChunksRetrieved  int      `json:"chunksRetrieved"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
}

// ConversationPreview is the listing shape used by history pages.
type ConversationPreview struct {
	ID                 string               `json:"id"`
	Title              string               `json:"title"`
	Metadata           ConversationMetadata `json:"metadata"`
	Status             string               `json:"status"`
	MessageCount       int                  `json:"messageCount"`
	LastMessagePreview string               `json:"lastMessagePreview"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// Preview projects a conversation onto its listing shape.
func (c Conversation) Preview() ConversationPreview {
	return ConversationPreview{
		ID:                 c.ID,
		Title:              c.Title,
		Metadata:           c.Metadata,
		Status:             c.Status,
		MessageCount:       c.MessageCount,
		LastMessagePreview: c.LastMessagePreview,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}
