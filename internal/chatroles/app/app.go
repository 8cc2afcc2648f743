// Package app wires the storage, memory, and conversation-engine layers into
// one application and exposes the message-handling entry point used by the
// CLI front-end.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/common/textutil"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/common/trace"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/character"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/config"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/engine"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/memory"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/store"
)

// recentBufferLimit caps the per-room message buffer handed to the engine.
const recentBufferLimit = 20

// CharacterReply is one character's contribution to a room turn, paired with
// the interest evaluation that selected it.
type CharacterReply struct {
	CharacterID string
	Name        string
	Text        string
	Provider    string
	Score       float64
	Reason      string
}

// App owns the long-lived subsystems: the SQLite store, the memory manager,
// and the two engine stages.
type App struct {
	cfg        *config.Config
	store      *store.Store
	memory     *memory.Manager
	evaluator  *engine.Evaluator
	generator  *engine.Generator
	characters []character.Profile
	logger     *slog.Logger

	mu    sync.Mutex
	rooms map[string][]engine.Message // newest-first, capped
}

// New opens the database and wires the subsystems together. The caller owns
// the returned App and must Close it.
func New(cfg *config.Config, characters []character.Profile, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(characters) == 0 {
		return nil, fmt.Errorf("app: no characters configured")
	}

	logger.Info("opening database", "path", cfg.DatabasePath)
	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("app: open database: %w", err)
	}

	manager := memory.NewManager(memory.NewSQLiteBankStore(db.DB(), logger), logger)

	providers := cfg.Providers()
	secrets := cfg.Secrets()
	demoMode := cfg.DemoMode()
	if demoMode {
		// An empty chain bottoms out at the offline responder immediately,
		// so demo mode never performs network I/O.
		providers = nil
		logger.Info("demo mode active; no provider calls will be made")
	}

	evaluator := engine.NewEvaluator(manager, providers, engine.EvaluatorConfig{
		DemoMode: demoMode,
		Seed:     cfg.Seed,
		Secrets:  secrets,
	}, logger)

	generator := engine.NewGenerator(manager, providers, engine.GeneratorConfig{
		WindowSize:          cfg.WindowSize,
		SimilarityThreshold: cfg.SimilarityThreshold,
		Seed:                cfg.Seed,
		Secrets:             secrets,
	}, logger)

	return &App{
		cfg:        cfg,
		store:      db,
		memory:     manager,
		evaluator:  evaluator,
		generator:  generator,
		characters: characters,
		logger:     logger,
		rooms:      make(map[string][]engine.Message),
	}, nil
}

// Characters returns the loaded roster.
func (a *App) Characters() []character.Profile {
	return a.characters
}

// Close releases the database.
func (a *App) Close() error {
	return a.store.Close()
}

// WarmUp creates a memory bank for every character that does not have one
// yet. Called once at startup so generation never hits a cold character;
// ensureBank covers characters added later.
func (a *App) WarmUp(ctx context.Context) error {
	for _, ch := range a.characters {
		if err := a.ensureBank(ctx, ch); err != nil {
			return err
		}
	}
	return nil
}

// ensureBank creates the character's memory bank when absent.
func (a *App) ensureBank(ctx context.Context, ch character.Profile) error {
	bank, err := a.memory.Get(ctx, ch.ID)
	if err != nil {
		return fmt.Errorf("app: load bank for %s: %w", ch.ID, err)
	}
	if bank != nil {
		return nil
	}
	if _, err := a.memory.Create(ctx, ch.ID, ch.Name, ch.Persona); err != nil {
		return fmt.Errorf("app: create bank for %s: %w", ch.ID, err)
	}
	a.logger.Info("memory bank created", "character_id", ch.ID, "name", ch.Name)
	return nil
}

// HandleMessage runs one room turn: every character evaluates its interest
// in the inbound message, and those that clear their threshold reply in
// descending interest order. The inbound message and all replies are
// appended to the room's recent-message buffer.
//
// A generation failure for one character is logged and skipped; it never
// aborts the turn for the rest of the roster.
func (a *App) HandleMessage(ctx context.Context, roomID, sender, text string) ([]CharacterReply, error) {
	if text == "" {
		return nil, nil
	}

	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	logger := a.logger.With("trace_id", trace.FromContext(ctx), "room_id", roomID)

	topic := textutil.ExtractTopic(text)
	recent := a.snapshotRoom(roomID)
	roomContext := renderContext(recent)

	type candidate struct {
		profile character.Profile
		eval    engine.Evaluation
	}
	var participants []candidate
	for _, ch := range a.characters {
		if err := a.ensureBank(ctx, ch); err != nil {
			logger.Warn("bank warm-up failed, skipping character", "character_id", ch.ID, "err", err)
			continue
		}
		eval := a.evaluator.Evaluate(ctx, engine.EvaluateRequest{
			Character: ch,
			Topic:     topic,
			Context:   roomContext,
		})
		logger.Debug("interest evaluated",
			"character_id", ch.ID, "score", eval.Score, "participate", eval.ShouldParticipate)
		if eval.ShouldParticipate {
			participants = append(participants, candidate{profile: ch, eval: eval})
		}
	}

	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].eval.Score > participants[j].eval.Score
	})

	a.appendRoom(roomID, engine.Message{Sender: sender, Content: text})

	var replies []CharacterReply
	for _, p := range participants {
		reply, err := a.generator.Generate(ctx, engine.GenerateRequest{
			Character: p.profile,
			Message:   text,
			Context:   roomContext,
			RoomID:    roomID,
			Recent:    recent,
		})
		if err != nil {
			logger.Warn("generation failed, skipping character",
				"character_id", p.profile.ID, "err", err)
			continue
		}
		replies = append(replies, CharacterReply{
			CharacterID: p.profile.ID,
			Name:        p.profile.Name,
			Text:        reply.Text,
			Provider:    reply.Provider,
			Score:       p.eval.Score,
			Reason:      p.eval.Reason,
		})
		a.appendRoom(roomID, engine.Message{Sender: p.profile.Name, Content: reply.Text})
	}
	return replies, nil
}

// snapshotRoom returns a copy of the room's buffer, newest-first.
func (a *App) snapshotRoom(roomID string) []engine.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf := a.rooms[roomID]
	out := make([]engine.Message, len(buf))
	copy(out, buf)
	return out
}

// appendRoom prepends a message to the room's buffer, trimming to the cap.
func (a *App) appendRoom(roomID string, msg engine.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf := append([]engine.Message{msg}, a.rooms[roomID]...)
	if len(buf) > recentBufferLimit {
		buf = buf[:recentBufferLimit]
	}
	a.rooms[roomID] = buf
}

// renderContext flattens the recent buffer into the free-text context handed
// to the engine prompts. Oldest messages come first so the text reads in
// chronological order.
func renderContext(recent []engine.Message) string {
	if len(recent) == 0 {
		return ""
	}
	var b strings.Builder
	for i := len(recent) - 1; i >= 0; i-- {
		b.WriteString(recent[i].Sender)
		b.WriteString(": ")
		b.WriteString(recent[i].Content)
		b.WriteByte('\n')
	}
	return b.String()
}
