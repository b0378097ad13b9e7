package tokenizer

import "testing"

func TestEstimatorTokenizer_CountTokens(t *testing.T) {
	e := NewEstimatorTokenizer("unknown-model", 0)

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
		{"123456789", 3},
	}

	for _, tt := range tests {
		got, err := e.CountTokens(tt.text)
		if err != nil {
			t.Fatalf("CountTokens(%q): %v", tt.text, err)
		}
		if got != tt.want {
			t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestEstimatorTokenizer_CountMessages(t *testing.T) {
	e := NewEstimatorTokenizer("unknown-model", 0)

	total, err := e.CountMessages([]Message{
		{Role: "user", Content: "abcd"},
		{Role: "assistant", Content: "abcdefgh"},
	})
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	// (1+4) + (2+4) + 3 conversation overhead
	if want := 14; total != want {
		t.Errorf("CountMessages = %d, want %d", total, want)
	}
}

func TestGetTokenizerOrEstimator_FallsBack(t *testing.T) {
	tok := GetTokenizerOrEstimator("some-unregistered-model")
	if tok.Name() != "estimator" {
		t.Errorf("expected fallback to estimator, got %s", tok.Name())
	}
}
