package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(NewInMemoryBankStore(), nil)
}

func TestManagerCreateAndGet(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	created, err := m.Create(ctx, "ai-expert", "AI专家", "专注于人工智能和机器学习的研究者")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.PersonalitySummary == "" {
		t.Error("expected a generated personality summary")
	}
	if created.PersonalityTraits != DefaultTraits() {
		t.Errorf("expected default traits, got %+v", created.PersonalityTraits)
	}

	got, err := m.Get(ctx, "ai-expert")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected bank after Create, got nil")
	}
	if got.CharacterID != "ai-expert" || got.Name != "AI专家" {
		t.Errorf("unexpected identity: %q %q", got.CharacterID, got.Name)
	}
}

func TestManagerGetAbsentBankIsNilNil(t *testing.T) {
	m := newTestManager(t)
	got, err := m.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil bank for unknown character, got %+v", got)
	}
}

func TestManagerAppendFillsIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	if _, err := m.Create(ctx, "c1", "角色", "人设"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.AddKeyMemory(ctx, "c1", KeyMemory{Kind: "opinion", Topic: "ai", Content: "观点"}); err != nil {
		t.Fatalf("AddKeyMemory: %v", err)
	}
	if err := m.AddConversationHistory(ctx, "c1", HistoryEntry{Topic: "ai", ViewExpressed: "发言"}); err != nil {
		t.Fatalf("AddConversationHistory: %v", err)
	}

	bank, err := m.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(bank.KeyMemories) != 1 || len(bank.ConversationHistory) != 1 {
		t.Fatalf("expected 1 memory and 1 history entry, got %d/%d",
			len(bank.KeyMemories), len(bank.ConversationHistory))
	}
	if bank.KeyMemories[0].ID == "" || bank.KeyMemories[0].Timestamp.IsZero() {
		t.Error("key memory should get a generated ID and timestamp")
	}
	if bank.ConversationHistory[0].ID == "" || bank.ConversationHistory[0].Timestamp.IsZero() {
		t.Error("history entry should get a generated ID and timestamp")
	}
	if bank.LastUpdated.IsZero() {
		t.Error("LastUpdated should be stamped on save")
	}
}

func TestManagerAppendWithoutBankIsNoop(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	if err := m.AddKeyMemory(ctx, "ghost", KeyMemory{Content: "x"}); err != nil {
		t.Fatalf("AddKeyMemory on absent bank should be a no-op, got %v", err)
	}
	if err := m.AddConversationHistory(ctx, "ghost", HistoryEntry{ViewExpressed: "x"}); err != nil {
		t.Fatalf("AddConversationHistory on absent bank should be a no-op, got %v", err)
	}
	bank, err := m.Get(ctx, "ghost")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if bank != nil {
		t.Fatal("no-op append must not create a bank")
	}
}

func TestRelevantMemoriesRanking(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	if _, err := m.Create(ctx, "c1", "角色", "人设"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, content := range []string{
		"thoughts on ai and agents",
		"only ai here",
		"completely unrelated gardening notes",
	} {
		if err := m.AddKeyMemory(ctx, "c1", KeyMemory{Kind: "opinion", Content: content}); err != nil {
			t.Fatalf("AddKeyMemory: %v", err)
		}
	}

	got, err := m.RelevantMemories(ctx, "c1", "ai agents", 5)
	if err != nil {
		t.Fatalf("RelevantMemories: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 relevant memories, got %d", len(got))
	}
	if got[0].Content != "thoughts on ai and agents" {
		t.Errorf("two-token match should rank first, got %q", got[0].Content)
	}

	top, err := m.RelevantMemories(ctx, "c1", "ai agents", 1)
	if err != nil {
		t.Fatalf("RelevantMemories: %v", err)
	}
	if len(top) != 1 || top[0].Content != "thoughts on ai and agents" {
		t.Errorf("limit should keep the best match, got %+v", top)
	}
}

func TestRelevantMemoriesAbsentBank(t *testing.T) {
	m := newTestManager(t)
	got, err := m.RelevantMemories(context.Background(), "ghost", "ai", 3)
	if err != nil {
		t.Fatalf("RelevantMemories: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no memories for absent bank, got %d", len(got))
	}
}

func TestRecentHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	if _, err := m.Create(ctx, "c1", "角色", "人设"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, view := range []string{"first", "second", "third"} {
		if err := m.AddConversationHistory(ctx, "c1", HistoryEntry{ViewExpressed: view}); err != nil {
			t.Fatalf("AddConversationHistory: %v", err)
		}
	}

	got, err := m.RecentHistory(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ViewExpressed != "third" || got[1].ViewExpressed != "second" {
		t.Errorf("expected newest-first order, got %q then %q",
			got[0].ViewExpressed, got[1].ViewExpressed)
	}
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	if _, err := m.Create(ctx, "c1", "角色", "人设"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers*2)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- m.AddKeyMemory(ctx, "c1", KeyMemory{
				Kind:    "opinion",
				Topic:   "ai",
				Content: fmt.Sprintf("观点 %d", i),
			})
			errs <- m.AddConversationHistory(ctx, "c1", HistoryEntry{
				ViewExpressed: fmt.Sprintf("发言 %d", i),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent append: %v", err)
		}
	}

	bank, err := m.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(bank.KeyMemories) != writers {
		t.Errorf("expected %d key memories, got %d", writers, len(bank.KeyMemories))
	}
	if len(bank.ConversationHistory) != writers {
		t.Errorf("expected %d history entries, got %d", writers, len(bank.ConversationHistory))
	}
}

func TestGetWithoutMutationIsStable(t *testing.T) {
	ctx := context.Background()
	stores := map[string]BankStore{
		"in-memory": NewInMemoryBankStore(),
		"sqlite":    newTestSQLiteStore(t),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			m := NewManager(s, nil)
			if _, err := m.Create(ctx, "c1", "角色", "人设"); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if err := m.AddKeyMemory(ctx, "c1", KeyMemory{Kind: "opinion", Topic: "ai", Content: "观点"}); err != nil {
				t.Fatalf("AddKeyMemory: %v", err)
			}

			first, err := m.Get(ctx, "c1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			second, err := m.Get(ctx, "c1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}

			a, err := json.Marshal(first)
			if err != nil {
				t.Fatalf("marshal first: %v", err)
			}
			b, err := json.Marshal(second)
			if err != nil {
				t.Fatalf("marshal second: %v", err)
			}
			if !bytes.Equal(a, b) {
				t.Errorf("repeated reads should be identical:\n%s\n%s", a, b)
			}
		})
	}
}
