// Package engine implements the conversation orchestration core: the
// interest evaluator that decides which characters join a topic, and the
// response generator with its provider fallback chain and repetition guard.
package engine

import (
	"sync"

	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/common/textutil"
)

// Repetition-guard defaults. Both are tunable through GeneratorConfig; the
// values carry no documented rationale beyond "worked in practice", so they
// are deliberately not hard-coded at call-sites.
const (
	DefaultWindowSize          = 3
	DefaultSimilarityThreshold = 0.6
)

// ReplyWindow is a bounded sliding buffer of the most recent raw reply texts
// for one conversation. It exists only to detect pathological repetition;
// it is not persisted.
type ReplyWindow struct {
	mu      sync.Mutex
	size    int
	replies []string
}

// newReplyWindow returns an empty window with the given capacity.
func newReplyWindow(size int) *ReplyWindow {
	if size < 2 {
		size = DefaultWindowSize
	}
	return &ReplyWindow{size: size}
}

// Append records a reply, evicting the oldest when the window is full.
func (w *ReplyWindow) Append(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.replies = append(w.replies, text)
	if len(w.replies) > w.size {
		w.replies = w.replies[len(w.replies)-w.size:]
	}
}

// Stuck reports whether the window is full and every adjacent pair of
// replies is similar at or above threshold — the signature of a character
// caught in a loop.
func (w *ReplyWindow) Stuck(threshold float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.replies) < w.size {
		return false
	}
	for i := 1; i < len(w.replies); i++ {
		if textutil.Similarity(w.replies[i-1], w.replies[i]) < threshold {
			return false
		}
	}
	return true
}

// Clear empties the window. Called after a stuck loop is detected so the
// redirected reply starts a fresh observation period.
func (w *ReplyWindow) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.replies = nil
}

// Windows is the registry of reply windows, keyed by (characterID, roomID)
// so interleaved replies from other characters or rooms can never trip the
// guard for an unrelated conversation.
type Windows struct {
	mu   sync.Mutex
	size int
	byID map[string]*ReplyWindow
}

// NewWindows creates a registry whose windows hold size replies each.
func NewWindows(size int) *Windows {
	if size < 2 {
		size = DefaultWindowSize
	}
	return &Windows{size: size, byID: make(map[string]*ReplyWindow)}
}

// For returns the window for the given conversation, creating it on first use.
func (ws *Windows) For(characterID, roomID string) *ReplyWindow {
	key := characterID + "\x00" + roomID
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.byID[key]
	if !ok {
		w = newReplyWindow(ws.size)
		ws.byID[key] = w
	}
	return w
}
