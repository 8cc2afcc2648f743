package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/character"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/config"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/engine"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := &config.Config{
		DatabasePath:        filepath.Join(t.TempDir(), "test.db"),
		Demo:                true,
		WindowSize:          3,
		SimilarityThreshold: 0.6,
		Seed:                1,
	}
	characters := []character.Profile{
		character.Profile{
			ID:                "ai-expert",
			Name:              "AI专家",
			Persona:           "专注于人工智能和机器学习的研究者",
			InterestThreshold: 0.5,
		}.Normalize(),
		character.Profile{
			ID:                "artist",
			Name:              "艺术家",
			Persona:           "热爱绘画和音乐的创作者",
			InterestThreshold: 0.99,
		}.Normalize(),
	}

	a, err := New(cfg, characters, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewRequiresCharacters(t *testing.T) {
	cfg := &config.Config{DatabasePath: filepath.Join(t.TempDir(), "test.db")}
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatal("expected an error for an empty roster")
	}
}

func TestHandleMessageSelectsInterestedCharacters(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if err := a.WarmUp(ctx); err != nil {
		t.Fatalf("WarmUp: %v", err)
	}

	replies, err := a.HandleMessage(ctx, "room-1", "用户", "我们聊聊人工智能的发展。")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("only the expert clears its threshold, got %d replies", len(replies))
	}

	r := replies[0]
	if r.CharacterID != "ai-expert" {
		t.Errorf("CharacterID: got %q", r.CharacterID)
	}
	if r.Score < 0.8 {
		t.Errorf("expert score on a core topic should be at least 0.8, got %v", r.Score)
	}
	if r.Provider != "demo" {
		t.Errorf("demo mode must answer offline, got provider %q", r.Provider)
	}
	if r.Text == "" || r.Reason == "" {
		t.Error("reply text and reason must be non-empty")
	}
}

func TestHandleMessageEmptyTextIsNoop(t *testing.T) {
	a := newTestApp(t)
	replies, err := a.HandleMessage(context.Background(), "room-1", "用户", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if replies != nil {
		t.Errorf("empty input should produce no replies, got %v", replies)
	}
}

func TestHandleMessageWarmsUpLazily(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	// No WarmUp call: the banks are created on the first message.
	if _, err := a.HandleMessage(ctx, "room-1", "用户", "我们聊聊人工智能。"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	for _, ch := range a.Characters() {
		bank, err := a.memory.Get(ctx, ch.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if bank == nil {
			t.Errorf("character %s should have a bank after the first message", ch.ID)
		}
	}
}

func TestHandleMessageMaintainsRoomBuffer(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if _, err := a.HandleMessage(ctx, "room-1", "用户", "我们聊聊人工智能。"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	recent := a.snapshotRoom("room-1")
	// The user message plus one character reply, newest-first.
	if len(recent) != 2 {
		t.Fatalf("expected 2 buffered messages, got %d", len(recent))
	}
	if recent[0].Sender != "AI专家" {
		t.Errorf("newest message should be the reply, got sender %q", recent[0].Sender)
	}
	if recent[1].Sender != "用户" {
		t.Errorf("older message should be the user's, got sender %q", recent[1].Sender)
	}

	// A different room starts empty.
	if got := a.snapshotRoom("room-2"); len(got) != 0 {
		t.Errorf("room-2 should have no history, got %d", len(got))
	}
}

func TestRoomBufferIsCapped(t *testing.T) {
	a := newTestApp(t)
	for i := 0; i < recentBufferLimit+10; i++ {
		a.appendRoom("room-1", engine.Message{Sender: "用户", Content: "消息"})
	}
	if got := len(a.snapshotRoom("room-1")); got != recentBufferLimit {
		t.Errorf("buffer should be capped at %d, got %d", recentBufferLimit, got)
	}
}
