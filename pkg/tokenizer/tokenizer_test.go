package tokenizer

import (
	"math"
	"testing"

	"github.com/knograph/knograph/pkg/common"
)

func TestTokenizeEmptyInput(t *testing.T) {
	tk := New()
	for _, text := range []string{"", "   ", "\n\t"} {
		if got := tk.Tokenize(text); len(got) != 0 {
			t.Fatalf("expected no tokens for %q, got %v", text, got)
		}
	}
}

func TestTokenizeEnglishOffsets(t *testing.T) {
	tk := New()
	text := "Artificial intelligence is a branch of computer science."
	tokens := tk.Tokenize(text)

	want := []string{"Artificial", "intelligence", "computer", "science"}
	got := make(map[string]bool)
	for _, tok := range tokens {
		got[tok.Text] = true
	}
	for _, w := range want {
		if !got[w] {
			t.Fatalf("expected token %q in %v", w, tokens)
		}
	}

	for _, tok := range tokens {
		if text[tok.Start:tok.End] != tok.Text {
			t.Fatalf("offset mismatch: text[%d:%d]=%q, token=%q",
				tok.Start, tok.End, text[tok.Start:tok.End], tok.Text)
		}
	}
}

func TestTokenizeRoundTrip(t *testing.T) {
	tk := New()
	texts := []string{
		"北京是中国的首都，上海是中国的经济中心。",
		"GPT-4 发布于 2023 年，由 OpenAI 开发。",
		"mixed 中文 and English 123.45 numbers",
	}
	for _, text := range texts {
		for _, tok := range tk.Tokenize(text) {
			if text[tok.Start:tok.End] != tok.Text {
				t.Fatalf("round-trip failed for %q: text[%d:%d]=%q, token=%q",
					text, tok.Start, tok.End, text[tok.Start:tok.End], tok.Text)
			}
		}
	}
}

func TestTokenizeMixedScriptsKeepsBoth(t *testing.T) {
	tk := New()
	tokens := tk.Tokenize("中文 english 42")

	var hasCJK, hasLatin, hasNumber bool
	for _, tok := range tokens {
		switch {
		case tok.Text == "english":
			hasLatin = true
		case tok.Text == "42":
			hasNumber = true
		default:
			for _, r := range tok.Text {
				if r >= 0x4E00 && r <= 0x9FFF {
					hasCJK = true
				}
			}
		}
	}
	if !hasCJK || !hasLatin || !hasNumber {
		t.Fatalf("mixed text dropped a script class: cjk=%v latin=%v number=%v tokens=%v",
			hasCJK, hasLatin, hasNumber, tokens)
	}
}

func TestStopwordFiltering(t *testing.T) {
	tk := New()
	for _, tok := range tk.Tokenize("北京是中国的首都") {
		if tok.Text == "的" || tok.Text == "是" {
			t.Fatalf("stopword %q not filtered", tok.Text)
		}
	}

	tk.AddStopwords("branch")
	for _, tok := range tk.Tokenize("a branch of science") {
		if tok.Text == "branch" {
			t.Fatal("added stopword not filtered")
		}
	}

	tk.RemoveStopwords("branch")
	found := false
	for _, tok := range tk.Tokenize("a branch of science") {
		if tok.Text == "branch" {
			found = true
		}
	}
	if !found {
		t.Fatal("removed stopword still filtered")
	}
}

func TestCustomDictType(t *testing.T) {
	tk := New()
	tk.AddCustomDict(map[string]string{"golang": "tech"})

	var got string
	for _, tok := range tk.Tokenize("golang is fun") {
		if tok.Text == "golang" {
			got = tok.Type
		}
	}
	if got != "tech" {
		t.Fatalf("expected custom dict type %q, got %q", "tech", got)
	}
}

func TestWordFrequency(t *testing.T) {
	tk := New()
	freq := tk.WordFrequency("go go go stop")
	if freq["go"] != 3 {
		t.Fatalf("expected frequency 3 for 'go', got %d", freq["go"])
	}
	if freq["stop"] != 1 {
		t.Fatalf("expected frequency 1 for 'stop', got %d", freq["stop"])
	}
}

func TestCalculateTFIDF(t *testing.T) {
	tok := common.Token{Text: "x", Weight: 2}
	got := CalculateTFIDF(tok, 4, 100)
	want := 2 * (math.Log(100.0/5.0) + 1)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}

	// Zero weight defaults to 1.
	got = CalculateTFIDF(common.Token{Text: "y"}, 0, 10)
	want = math.Log(10.0/1.0) + 1
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}
}
