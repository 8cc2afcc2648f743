// Package memory implements the per-character memory bank: a durable record
// of personality traits, a free-text self-summary, extracted key memories,
// and conversation history. The Manager on top of it provides CRUD plus
// retrieval ranking (keyword relevance, recency slicing) for the engine.
package memory

import (
	"fmt"
	"time"

	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/common/textutil"
)

// Traits holds the big-five personality scores for a character.
// Each score is bounded to [0,1]. Traits are set at bank creation and
// rarely mutated afterwards.
type Traits struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

// DefaultTraits returns the trait scores assigned to a freshly created bank.
// Values lean toward an open, agreeable conversationalist so a brand-new
// character engages rather than lurks.
func DefaultTraits() Traits {
	return Traits{
		Openness:          0.7,
		Conscientiousness: 0.6,
		Extraversion:      0.5,
		Agreeableness:     0.6,
		Neuroticism:       0.4,
	}
}

// KeyMemory is a single extracted, importance-weighted fact or opinion
// attributed to a character. Key memories are append-only: the engine never
// deletes them (bank deletion is an external concern tied to character
// deletion).
type KeyMemory struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // e.g. "opinion", "fact"
	Topic      string    `json:"topic"`
	Content    string    `json:"content"`
	Importance float64   `json:"importance"` // [0,1]
	Timestamp  time.Time `json:"timestamp"`
}

// HistoryEntry records one turn the character took in a conversation:
// the topic it spoke on, the view it expressed, and a short context summary.
// Append-only, like KeyMemories.
type HistoryEntry struct {
	ID             string    `json:"id"`
	Topic          string    `json:"topic"`
	ViewExpressed  string    `json:"view_expressed"`
	ContextSummary string    `json:"context_summary"`
	Timestamp      time.Time `json:"timestamp"`
}

// Bank is the persistent memory record for one character, keyed by the
// character's identity. Created lazily the first time a character needs
// memory; updated after every generated reply.
type Bank struct {
	CharacterID         string         `json:"character_id"`
	Name                string         `json:"name"`
	PersonalitySummary  string         `json:"personality_summary"`
	PersonalityTraits   Traits         `json:"personality_traits"`
	KeyMemories         []KeyMemory    `json:"key_memories"`
	ConversationHistory []HistoryEntry `json:"conversation_history"`
	CreatedAt           time.Time      `json:"created_at"`
	LastUpdated         time.Time      `json:"last_updated"`
}

// NewBank builds an in-memory bank for a character with default traits and a
// generated one-sentence self-summary derived from the persona text. The
// caller persists it through the Manager.
func NewBank(characterID, name, persona string) *Bank {
	now := time.Now().UTC()
	return &Bank{
		CharacterID:        characterID,
		Name:               name,
		PersonalitySummary: summarisePersona(name, persona),
		PersonalityTraits:  DefaultTraits(),
		CreatedAt:          now,
		LastUpdated:        now,
	}
}

// summarisePersona produces the initial self-summary sentence. It keeps the
// first sentence of the persona so the summary stays one line even when the
// persona instructions run long.
func summarisePersona(name, persona string) string {
	lead := textutil.ExtractTopic(persona)
	if lead == "" {
		return fmt.Sprintf("我是%s。", name)
	}
	return fmt.Sprintf("我是%s，%s。", name, lead)
}
