package textutil

import "testing"

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		wantMin float64
		wantMax float64
	}{
		{name: "identical", a: "same text", b: "same text", wantMin: 1, wantMax: 1},
		{name: "both empty", a: "", b: "", wantMin: 1, wantMax: 1},
		{name: "one empty", a: "hello", b: "", wantMin: 0, wantMax: 0},
		{name: "disjoint", a: "abcde", b: "vwxyz", wantMin: 0, wantMax: 0},
		{name: "near duplicate", a: "我认为人工智能前景广阔", b: "我认为人工智能前景很广阔", wantMin: 0.85, wantMax: 0.99},
		{name: "same prefix half", a: "abcdefgh", b: "abcdzzzz", wantMin: 0.45, wantMax: 0.55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("Similarity(%q, %q) = %.3f, want in [%.2f, %.2f]", tt.a, tt.b, got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestSimilarity_Symmetry(t *testing.T) {
	a, b := "一段比较长的中文回复内容", "另一段完全不同的回复"
	if Similarity(a, b) != Similarity(b, a) {
		t.Error("similarity should be symmetric")
	}
}
