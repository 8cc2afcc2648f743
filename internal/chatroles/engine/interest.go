package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/common/redact"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/character"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/memory"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/provider"
)

// uninitializedReason is the fixed explanation used when a character has no
// memory bank yet.
const uninitializedReason = "记忆库尚未初始化，先试探性地参与"

// Evaluation is the scored decision of whether a character engages with a
// topic. Ephemeral: derived per call, never persisted.
type Evaluation struct {
	// Score is the interest score in [0,1].
	Score float64 `json:"score"`

	// Reason is a one-line explanation of the score.
	Reason string `json:"reason"`

	// ShouldParticipate is true when Score clears the character's threshold
	// (relaxed in the degraded all-providers-down path).
	ShouldParticipate bool `json:"shouldParticipate"`
}

// EvaluateRequest is the input to a single interest evaluation.
type EvaluateRequest struct {
	// Character is the profile under evaluation (read-only).
	Character character.Profile

	// Topic is the extracted topic of the inbound message.
	Topic string

	// Context is free-form surrounding text (room scene, prior summary).
	Context string
}

// EvaluatorConfig tunes an Evaluator.
type EvaluatorConfig struct {
	// DemoMode forces the deterministic offline scoring path; no network
	// I/O is performed. Normally derived from the sentinel credential value.
	DemoMode bool

	// Seed fixes the evaluator's random source for reproducible tests.
	// Zero means time-seeded.
	Seed int64

	// Secrets lists credential values scrubbed from logged provider errors
	// (error strings can embed response bodies that echo them back).
	Secrets []string
}

// Evaluator scores each character's interest in a topic to decide
// participation.
//
// Evaluate never returns an error: every failure path terminates in one of
// the documented fallbacks, so a single broken provider or cold character
// can never block evaluation of the rest of the roster.
type Evaluator struct {
	memory    *memory.Manager
	providers []provider.Provider // ordered; primary first
	cfg       EvaluatorConfig
	logger    *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEvaluator creates an Evaluator over the given remote providers, in
// fallback order. Providers holding placeholder credentials are skipped at
// call time. If logger is nil, the default slog logger is used.
func NewEvaluator(mem *memory.Manager, providers []provider.Provider, cfg EvaluatorConfig, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Evaluator{
		memory:    mem,
		providers: providers,
		cfg:       cfg,
		logger:    logger,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Evaluate produces the participation decision for one character and topic.
//
// Decision order:
//  1. No memory bank → neutral score 0.5 with a coin-flip participation, so
//     a cold character still produces some decision.
//  2. Demo mode → deterministic keyword-overlap scoring, no network.
//  3. Remote providers in order, parsing strict JSON; ShouldParticipate is
//     recomputed locally from the character's threshold regardless of what
//     the model claimed.
//  4. All providers down → pseudo-random score scaled by the participation
//     level, against a threshold relaxed by 0.1 (floor 0.3) so an outage
//     cannot permanently silence a character.
func (e *Evaluator) Evaluate(ctx context.Context, req EvaluateRequest) Evaluation {
	ch := req.Character

	bank, err := e.memory.Get(ctx, ch.ID)
	if err != nil {
		e.logger.Warn("interest: bank load failed, treating as uninitialized", "character_id", ch.ID, "err", err)
		bank = nil
	}
	if bank == nil {
		return Evaluation{
			Score:             0.5,
			Reason:            uninitializedReason,
			ShouldParticipate: e.coinFlip(),
		}
	}

	if e.cfg.DemoMode {
		return e.offlineEvaluate(ch, req.Topic)
	}

	system, prompt := buildInterestPrompt(ch, bank.PersonalityTraits, req.Topic, req.Context)
	for _, p := range e.providers {
		if !p.Available() {
			continue
		}
		eval, err := e.evaluateWith(ctx, p, system, prompt, ch.InterestThreshold)
		if err != nil {
			e.logger.Warn("interest: provider failed, falling back",
				"provider", p.Name(),
				"character_id", ch.ID,
				"err", redact.String(err.Error(), e.cfg.Secrets...),
			)
			continue
		}
		return eval
	}

	return e.degradedEvaluate(ch)
}

// evaluateWith runs one provider call and parses the strict JSON contract.
func (e *Evaluator) evaluateWith(ctx context.Context, p provider.Provider, system, prompt string, threshold float64) (Evaluation, error) {
	completion, err := p.Complete(ctx, provider.CompletionRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   256,
	})
	if err != nil {
		return Evaluation{}, err
	}

	var eval Evaluation
	if err := json.Unmarshal([]byte(extractJSONObject(completion.Text)), &eval); err != nil {
		return Evaluation{}, err
	}

	eval.Score = clamp01(eval.Score)
	// The model's own participation verdict is overridden so the decision
	// always agrees with the configured threshold.
	eval.ShouldParticipate = eval.Score >= threshold
	return eval, nil
}

// offlineEvaluate is the deterministic demo-mode path: keyword overlap
// between the character's name/persona and the topic, mapped into bands.
func (e *Evaluator) offlineEvaluate(ch character.Profile, topic string) Evaluation {
	identity := ch.Name + " " + ch.Persona

	var (
		bestScore  float64
		bestReason string
	)
	for _, theme := range provider.Themes() {
		if !theme.Matches(identity) && !theme.MatchesRelated(identity) {
			continue
		}
		switch {
		case theme.Matches(topic):
			score := 0.8 + 0.2*keywordStrength(topic, theme.Keywords)
			if score > bestScore {
				bestScore = score
				bestReason = "话题与我的领域（" + theme.Name + "）高度相关"
			}
		case theme.MatchesRelated(topic):
			score := 0.6 + 0.3*keywordStrength(topic, theme.Related)
			if score > bestScore {
				bestScore = score
				bestReason = "话题与我的领域（" + theme.Name + "）有些关联"
			}
		}
	}

	if bestScore == 0 {
		bestScore = 0.3 + e.random()*0.5
		bestReason = "话题不在我的主要领域，兴趣一般"
	}

	score := clamp01(bestScore)
	return Evaluation{
		Score:             score,
		Reason:            bestReason,
		ShouldParticipate: score >= ch.InterestThreshold,
	}
}

// degradedEvaluate is the terminal fallback when every provider failed:
// a scaled pseudo-random score against a deliberately relaxed threshold.
func (e *Evaluator) degradedEvaluate(ch character.Profile) Evaluation {
	score := (0.2 + e.random()*0.6) * ch.ParticipationLevel
	if score > 1 {
		score = 1
	}
	relaxed := ch.InterestThreshold - 0.1
	if relaxed < 0.3 {
		relaxed = 0.3
	}
	return Evaluation{
		Score:             score,
		Reason:            "模型服务不可用，按参与度随机评估",
		ShouldParticipate: score >= relaxed,
	}
}

func (e *Evaluator) coinFlip() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(2) == 0
}

func (e *Evaluator) random() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

// keywordStrength scales band position by how many of the terms appear in
// the text: one hit sits at the bottom of the band, five or more at the top.
func keywordStrength(text string, terms []string) float64 {
	lower := strings.ToLower(text)
	hits := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	strength := float64(hits-1) / 4
	if strength > 1 {
		strength = 1
	}
	return strength
}

// extractJSONObject returns the first top-level JSON object embedded in s.
// Models occasionally wrap their JSON in code fences or prose despite the
// instructions; taking the outermost brace pair recovers those replies.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
