package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/common/redact"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/common/textutil"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/character"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/memory"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/provider"
)

// ErrMemoryBankMissing is returned by Generate when the character has no
// memory bank. Unlike interest evaluation, reply generation cannot proceed
// without memory context — generating from nothing would silently violate
// the character's behavioral contract, so the caller must warm the
// character up first (Manager.Create).
var ErrMemoryBankMissing = errors.New("engine: memory bank missing")

// Retrieval depths for prompt composition.
const (
	relevantMemoryLimit = 3
	recentHistoryLimit  = 2

	// threadCueSpan is how many of the latest visible messages the random
	// conversation-thread cue is sampled from.
	threadCueSpan = 5

	// keyOpinionImportance is the importance assigned to the key memory
	// extracted from each generated reply.
	keyOpinionImportance = 0.6
)

// maxRegenerations bounds repetition-triggered regeneration per call. The
// redirect phrase changes the prompt and should break the cycle on the
// first try; the cap guarantees termination even if it does not.
const maxRegenerations = 1

// stuckMarker prefixes a reply that remained repetitive after regeneration.
// The reply is still returned — availability wins over strict quality.
const stuckMarker = "🔄 "

// redirectPhrases are prefixed to the prompt when a stuck loop is detected,
// steering the model onto a different track. One is picked at random.
var redirectPhrases = []string{
	"让我们换个角度来看这个话题。",
	"先跳出刚才的思路，说点不一样的。",
	"这让我想起另一个相关的问题。",
	"换一种说法来表达我的看法。",
	"从另一个侧面来聊聊。",
}

// GenerateRequest is the input to a single reply generation.
type GenerateRequest struct {
	// Character is the replying character's profile (read-only).
	Character character.Profile

	// Message is the raw inbound user message.
	Message string

	// Context is free-form surrounding text (room scene, prior summary).
	Context string

	// RoomID scopes the repetition guard to the conversation the reply
	// belongs to. May be empty for single-room deployments.
	RoomID string

	// Recent is the visible message history, newest-first.
	Recent []Message

	// Temperature, when non-nil, overrides the character's configured
	// sampling temperature.
	Temperature *float64
}

// MemorySnapshot captures the exact memory state a reply was generated
// from, for auditability. It is not replayed automatically.
type MemorySnapshot struct {
	PersonalitySummary string                `json:"personality_summary"`
	Traits             memory.Traits         `json:"traits"`
	Memories           []memory.KeyMemory    `json:"memories"`
	History            []memory.HistoryEntry `json:"history"`
}

// Reply is a generated character reply plus its audit snapshot.
type Reply struct {
	// Text is the reply text.
	Text string

	// Provider names the backend that produced the text ("demo" when the
	// chain bottomed out on the offline responder).
	Provider string

	// Snapshot is the memory state used for generation.
	Snapshot MemorySnapshot
}

// GeneratorConfig tunes a Generator.
type GeneratorConfig struct {
	// WindowSize is the repetition-guard window capacity. Default 3.
	WindowSize int

	// SimilarityThreshold is the adjacent-pair similarity at which the
	// window counts as a stuck loop. Default 0.6.
	SimilarityThreshold float64

	// Seed fixes the generator's random source for reproducible tests.
	// Zero means time-seeded.
	Seed int64

	// Secrets lists credential values scrubbed from logged provider errors.
	Secrets []string
}

// Generator produces character replies through an ordered provider fallback
// chain, guards against repetition loops, and persists the memory effects
// of every successful reply.
type Generator struct {
	memory    *memory.Manager
	providers []provider.Provider // fallback order; demo responder is implicit terminal
	windows   *Windows
	threshold float64
	secrets   []string
	logger    *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a Generator. providers is the fallback order used
// when a character's configured provider fails; the deterministic offline
// responder is always the terminal element and needs not be listed. If
// logger is nil, the default slog logger is used.
func NewGenerator(mem *memory.Manager, providers []provider.Provider, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		memory:    mem,
		providers: providers,
		windows:   NewWindows(cfg.WindowSize),
		threshold: threshold,
		secrets:   cfg.Secrets,
		logger:    logger,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Generate produces one reply for the character.
//
// The only caller-visible errors are the missing-bank precondition and
// storage I/O failure; provider outages degrade through the fallback chain
// down to canned text and are never surfaced.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*Reply, error) {
	ch := req.Character

	bank, err := g.memory.Get(ctx, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("engine: load bank for %s: %w", ch.ID, err)
	}
	if bank == nil {
		return nil, fmt.Errorf("%w: character %s", ErrMemoryBankMissing, ch.ID)
	}

	topic := textutil.ExtractTopic(req.Message)

	memories, err := g.memory.RelevantMemories(ctx, ch.ID, topic, relevantMemoryLimit)
	if err != nil {
		return nil, fmt.Errorf("engine: retrieve memories for %s: %w", ch.ID, err)
	}
	history, err := g.memory.RecentHistory(ctx, ch.ID, recentHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("engine: retrieve history for %s: %w", ch.ID, err)
	}

	modelCfg := ch.ModelConfig()
	temperature := modelCfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	prompt := buildGenerationPrompt(bank, memories, history, req.Recent, g.threadCue(req.Recent), topic, req.Context, req.Message)
	completionReq := provider.CompletionRequest{
		System:      generationSystemPrompt(ch),
		Prompt:      prompt,
		Model:       modelCfg.Model,
		Temperature: temperature,
		MaxTokens:   modelCfg.MaxTokens,
	}

	text, source := g.complete(ctx, modelCfg.Provider, completionReq)

	// Repetition guard: bounded regeneration with a redirect phrase when the
	// last few replies of this conversation are pairwise near-identical.
	window := g.windows.For(ch.ID, req.RoomID)
	window.Append(text)
	for attempt := 0; attempt < maxRegenerations && window.Stuck(g.threshold); attempt++ {
		previous := text
		window.Clear()

		redirect := g.redirectPhrase()
		g.logger.Info("engine: stuck loop detected, regenerating",
			"character_id", ch.ID,
			"room_id", req.RoomID,
			"redirect", redirect,
		)

		regenReq := completionReq
		regenReq.Prompt = redirect + "\n\n" + prompt
		text, source = g.complete(ctx, modelCfg.Provider, regenReq)

		if textutil.Similarity(text, previous) >= g.threshold {
			text = stuckMarker + text
		}
		window.Append(text)
	}

	if err := g.persistReply(ctx, ch.ID, topic, text, req.Context); err != nil {
		return nil, err
	}

	return &Reply{
		Text:     text,
		Provider: source,
		Snapshot: MemorySnapshot{
			PersonalitySummary: bank.PersonalitySummary,
			Traits:             bank.PersonalityTraits,
			Memories:           memories,
			History:            history,
		},
	}, nil
}

// complete walks the fallback chain: the character's configured provider
// first, then the remaining providers in order (skipping ones without real
// credentials), and finally the deterministic offline responder. It cannot
// fail — the terminal element is a pure function.
func (g *Generator) complete(ctx context.Context, preferred string, req provider.CompletionRequest) (text, source string) {
	for _, p := range g.chainFor(preferred) {
		if !p.Available() {
			continue
		}
		completion, err := p.Complete(ctx, req)
		if err != nil {
			g.logger.Warn("engine: provider failed, falling back",
				"provider", p.Name(),
				"err", redact.String(err.Error(), g.secrets...),
			)
			continue
		}
		if completion.Text == "" {
			g.logger.Warn("engine: provider returned empty text, falling back", "provider", p.Name())
			continue
		}
		return completion.Text, p.Name()
	}

	return provider.Canned(req.Prompt), "demo"
}

// chainFor orders the providers with the character's configured one first.
// A preferred name that matches no adapter simply keeps the default order.
func (g *Generator) chainFor(preferred string) []provider.Provider {
	ordered := make([]provider.Provider, 0, len(g.providers))
	for _, p := range g.providers {
		if p.Name() == preferred {
			ordered = append(ordered, p)
			break
		}
	}
	for _, p := range g.providers {
		if p.Name() != preferred {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// threadCue samples one message from the last few visible turns. Injecting
// it into the prompt biases replies toward occasionally referencing older,
// non-adjacent turns instead of only the latest message.
func (g *Generator) threadCue(recent []Message) *Message {
	if len(recent) == 0 {
		return nil
	}
	span := threadCueSpan
	if span > len(recent) {
		span = len(recent)
	}
	g.mu.Lock()
	idx := g.rng.Intn(span)
	g.mu.Unlock()
	cue := recent[idx]
	return &cue
}

func (g *Generator) redirectPhrase() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return redirectPhrases[g.rng.Intn(len(redirectPhrases))]
}

// persistReply records the memory effects of a successful reply: the first
// sentence as an importance-weighted key opinion, and the full text as a
// conversation-history entry, both tagged with the inbound topic.
func (g *Generator) persistReply(ctx context.Context, characterID, topic, text, context string) error {
	opinion := textutil.ExtractTopic(text)
	if err := g.memory.AddKeyMemory(ctx, characterID, memory.KeyMemory{
		Kind:       "opinion",
		Topic:      topic,
		Content:    opinion,
		Importance: keyOpinionImportance,
	}); err != nil {
		return fmt.Errorf("engine: persist key memory: %w", err)
	}
	if err := g.memory.AddConversationHistory(ctx, characterID, memory.HistoryEntry{
		Topic:          topic,
		ViewExpressed:  text,
		ContextSummary: context,
	}); err != nil {
		return fmt.Errorf("engine: persist history entry: %w", err)
	}
	return nil
}
