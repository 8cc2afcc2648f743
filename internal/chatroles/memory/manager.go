package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/common/textutil"
)

// Manager provides CRUD and retrieval ranking over memory banks.
//
// Updates for a single character are serialized through a per-character lock
// so concurrent read-modify-write cycles (two replies generated for the same
// character at once) cannot lose appends. Calls for different characters do
// not contend.
//
// A missing bank is never an error: Get returns nil, and the append
// operations silently do nothing. Only storage I/O failures are surfaced,
// and callers should treat those as fatal for the current request.
type Manager struct {
	store  BankStore
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a Manager over the given store. If logger is nil, the
// default slog logger is used.
func NewManager(store BankStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// characterLock returns the mutex guarding updates for characterID,
// creating it on first use.
func (m *Manager) characterLock(characterID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[characterID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[characterID] = l
	}
	return l
}

// Create initializes and persists a new bank for the character with default
// trait scores and a generated self-summary sentence. An existing bank is
// overwritten; callers that want lazy creation should check Get first.
func (m *Manager) Create(ctx context.Context, characterID, name, persona string) (*Bank, error) {
	l := m.characterLock(characterID)
	l.Lock()
	defer l.Unlock()

	bank := NewBank(characterID, name, persona)
	if err := m.store.Put(ctx, bank); err != nil {
		return nil, fmt.Errorf("memory: create bank for %s: %w", characterID, err)
	}

	m.logger.Info("memory: created bank", "character_id", characterID, "name", name)
	return bank, nil
}

// Get returns the character's bank, or (nil, nil) when none exists yet.
// Callers must treat absence as "character not yet warmed up", not an error.
func (m *Manager) Get(ctx context.Context, characterID string) (*Bank, error) {
	return m.store.Get(ctx, characterID)
}

// Save persists the bank in full, stamping LastUpdated.
func (m *Manager) Save(ctx context.Context, bank *Bank) error {
	l := m.characterLock(bank.CharacterID)
	l.Lock()
	defer l.Unlock()
	return m.save(ctx, bank)
}

// save is the lock-free core of Save, reused by the append operations that
// already hold the character lock.
func (m *Manager) save(ctx context.Context, bank *Bank) error {
	bank.LastUpdated = time.Now().UTC()
	if err := m.store.Put(ctx, bank); err != nil {
		return fmt.Errorf("memory: save bank for %s: %w", bank.CharacterID, err)
	}
	return nil
}

// AddKeyMemory appends a key memory to the character's bank and persists it.
// Silently does nothing when the bank does not exist. A missing ID or
// timestamp on the memory is filled in.
func (m *Manager) AddKeyMemory(ctx context.Context, characterID string, mem KeyMemory) error {
	l := m.characterLock(characterID)
	l.Lock()
	defer l.Unlock()

	bank, err := m.store.Get(ctx, characterID)
	if err != nil {
		return fmt.Errorf("memory: load bank for %s: %w", characterID, err)
	}
	if bank == nil {
		m.logger.Debug("memory: skip key memory, no bank", "character_id", characterID)
		return nil
	}

	if mem.ID == "" {
		mem.ID = uuid.New().String()
	}
	if mem.Timestamp.IsZero() {
		mem.Timestamp = time.Now().UTC()
	}
	bank.KeyMemories = append(bank.KeyMemories, mem)
	return m.save(ctx, bank)
}

// AddConversationHistory appends a conversation-history entry to the
// character's bank and persists it. Silently does nothing when the bank does
// not exist.
func (m *Manager) AddConversationHistory(ctx context.Context, characterID string, entry HistoryEntry) error {
	l := m.characterLock(characterID)
	l.Lock()
	defer l.Unlock()

	bank, err := m.store.Get(ctx, characterID)
	if err != nil {
		return fmt.Errorf("memory: load bank for %s: %w", characterID, err)
	}
	if bank == nil {
		m.logger.Debug("memory: skip history entry, no bank", "character_id", characterID)
		return nil
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	bank.ConversationHistory = append(bank.ConversationHistory, entry)
	return m.save(ctx, bank)
}

// RelevantMemories returns up to limit key memories ranked by keyword
// overlap with the topic: the topic is tokenized on whitespace
// (case-insensitive) and each memory scores one point per topic token
// contained in its content. Memories scoring zero are dropped; ties keep
// insertion order. An empty slice means "no relevant memory" — also returned
// when the bank is absent — and is a signal, not an error.
func (m *Manager) RelevantMemories(ctx context.Context, characterID, topic string, limit int) ([]KeyMemory, error) {
	if limit <= 0 {
		return nil, nil
	}

	bank, err := m.store.Get(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("memory: load bank for %s: %w", characterID, err)
	}
	if bank == nil {
		return nil, nil
	}

	tokens := textutil.Tokens(topic)
	if len(tokens) == 0 {
		return nil, nil
	}

	type scored struct {
		mem   KeyMemory
		score int
	}
	var candidates []scored
	for _, mem := range bank.KeyMemories {
		content := strings.ToLower(mem.Content)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(content, tok) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{mem: mem, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	results := make([]KeyMemory, limit)
	for i := range results {
		results[i] = candidates[i].mem
	}
	return results, nil
}

// RecentHistory returns the last limit conversation-history entries,
// newest-first. Returns an empty slice when the bank is absent.
func (m *Manager) RecentHistory(ctx context.Context, characterID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	bank, err := m.store.Get(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("memory: load bank for %s: %w", characterID, err)
	}
	if bank == nil {
		return nil, nil
	}

	history := bank.ConversationHistory
	if limit > len(history) {
		limit = len(history)
	}
	results := make([]HistoryEntry, limit)
	for i := range results {
		results[i] = history[len(history)-1-i]
	}
	return results, nil
}
