package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. It is a closed union: the only
// implementations are UserMessage and AssistantMessage, so citations and
// source chunks can only ever be attached to an assistant turn.
type Message interface {
	Role() Role
	Text() string
	At() time.Time
	sealed()
}

// UserMessage is a question asked by the conversation owner.
type UserMessage struct {
	Content   string
	Timestamp time.Time
	Language  Language
}

// AssistantMessage is a generated answer with its supporting material.
type AssistantMessage struct {
	Content      string
	Citations    []Citation
	SourceChunks []SourceChunk
	Timestamp    time.Time
	Metadata     AnswerMetadata
}

func (UserMessage) Role() Role      { return RoleUser }
func (m UserMessage) Text() string  { return m.Content }
func (m UserMessage) At() time.Time { return m.Timestamp }
func (UserMessage) sealed()         {}

func (AssistantMessage) Role() Role      { return RoleAssistant }
func (m AssistantMessage) Text() string  { return m.Content }
func (m AssistantMessage) At() time.Time { return m.Timestamp }
func (AssistantMessage) sealed()         {}

type userMessageJSON struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  struct {
		Language Language `json:"language"`
	} `json:"metadata"`
}

type assistantMessageJSON struct {
	Role         Role           `json:"role"`
	Content      string         `json:"content"`
	Citations    []Citation     `json:"citations"`
	SourceChunks []SourceChunk  `json:"sourceChunks"`
	Timestamp    time.Time      `json:"timestamp"`
	Metadata     AnswerMetadata `json:"metadata"`
}

// MarshalJSON renders the user variant with its role discriminator.
func (m UserMessage) MarshalJSON() ([]byte, error) {
	out := userMessageJSON{Role: RoleUser, Content: m.Content, Timestamp: m.Timestamp}
	out.Metadata.Language = m.Language
	return json.Marshal(out)
}

// MarshalJSON renders the assistant variant with its role discriminator.
// Empty lists are emitted as [] so clients never see null.
func (m AssistantMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(assistantMessageJSON{
		Role:         RoleAssistant,
		Content:      m.Content,
		Citations:    nonNil(m.Citations),
		SourceChunks: nonNil(m.SourceChunks),
		Timestamp:    m.Timestamp,
		Metadata:     m.Metadata,
	})
}

// DecodeMessage parses a JSON message, dispatching on its role field.
func DecodeMessage(data []byte) (Message, error) {
	var head struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Role {
	case RoleUser:
		var in userMessageJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		return UserMessage{Content: in.Content, Timestamp: in.Timestamp, Language: in.Metadata.Language}, nil
	case RoleAssistant:
		var in assistantMessageJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		return AssistantMessage{
			Content:      in.Content,
			Citations:    nonNil(in.Citations),
			SourceChunks: nonNil(in.SourceChunks),
			Timestamp:    in.Timestamp,
			Metadata:     in.Metadata,
		}, nil
	default:
		return nil, fmt.Errorf("unknown message role %q", head.Role)
	}
}

// ToRecord converts a message to its stored row at the given position.
func ToRecord(conversationID string, position int, m Message) (MessageRecord, error) {
	rec := MessageRecord{
		ConversationID: conversationID,
		Position:       position,
		Role:           string(m.Role()),
		Content:        m.Text(),
		CreatedAt:      m.At(),
		Citations:      datatypes.JSON([]byte(`[]`)),
		SourceChunks:   datatypes.JSON([]byte(`[]`)),
	}
	switch v := m.(type) {
	case UserMessage:
		meta, err := json.Marshal(map[string]Language{"language": v.Language})
		if err != nil {
			return rec, err
		}
		rec.Metadata = datatypes.JSON(meta)
	case AssistantMessage:
		cites, err := json.Marshal(nonNil(v.Citations))
		if err != nil {
			return rec, err
		}
		chunks, err := json.Marshal(nonNil(v.SourceChunks))
		if err != nil {
			return rec, err
		}
		meta, err := json.Marshal(v.Metadata)
		if err != nil {
			return rec, err
		}
		rec.Citations = datatypes.JSON(cites)
		rec.SourceChunks = datatypes.JSON(chunks)
		rec.Metadata = datatypes.JSON(meta)
	}
	return rec, nil
}

// FromRecord rebuilds the typed message stored in rec.
func FromRecord(rec MessageRecord) (Message, error) {
	switch Role(rec.Role) {
	case RoleUser:
		var meta struct {
			Language Language `json:"language"`
		}
		if err := unmarshalOptional(rec.Metadata, &meta); err != nil {
			return nil, err
		}
		return UserMessage{Content: rec.Content, Timestamp: rec.CreatedAt, Language: meta.Language}, nil
	case RoleAssistant:
		out := AssistantMessage{Content: rec.Content, Timestamp: rec.CreatedAt}
		if err := unmarshalOptional(rec.Citations, &out.Citations); err != nil {
			return nil, err
		}
		if err := unmarshalOptional(rec.SourceChunks, &out.SourceChunks); err != nil {
			return nil, err
		}
		if err := unmarshalOptional(rec.Metadata, &out.Metadata); err != nil {
			return nil, err
		}
		out.Citations = nonNil(out.Citations)
		out.SourceChunks = nonNil(out.SourceChunks)
		return out, nil
	default:
		return nil, fmt.Errorf("unknown message role %q", rec.Role)
	}
}

// Preview returns a single-line excerpt of s of at most n runes.
func Preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func unmarshalOptional(raw datatypes.JSON, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
