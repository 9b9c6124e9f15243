// Package tokenizer splits raw text into position-tagged tokens. It is
// script-aware: CJK text goes through a word segmentation engine with an
// HMM-assisted mode, everything else (and any text when the engine is
// unavailable) goes through a regex fallback that scans CJK ideographs,
// Latin runs and numbers separately.
package tokenizer

import (
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"

	"github.com/knograph/knograph/pkg/common"
	"github.com/knograph/knograph/pkg/logger"
)

// Default stopword set, seeded with common CJK function words.
var defaultStopwords = []string{
	"的", "了", "和", "是", "在", "有", "我", "他", "这", "个",
	"们", "中", "来", "上", "大", "为", "就", "与", "也", "而",
	"及", "或", "一个", "没有", "我们", "你们", "他们",
}

var (
	cjkCharRe = regexp.MustCompile(`\p{Han}`)
	latinRe   = regexp.MustCompile(`[A-Za-z]+`)
	numberRe  = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Tokenizer produces position-tagged tokens from raw text. The zero value is
// not usable; create one with New. All methods are safe for concurrent use.
type Tokenizer struct {
	mu        sync.RWMutex
	stopwords map[string]struct{}
	dict      map[string]string // custom word -> token type

	segOnce sync.Once
	seg     gse.Segmenter
	segErr  error
}

// New creates a Tokenizer with the default stopword set. The segmentation
// engine is loaded lazily on the first CJK input.
func New() *Tokenizer {
	stop := make(map[string]struct{}, len(defaultStopwords))
	for _, w := range defaultStopwords {
		stop[w] = struct{}{}
	}
	return &Tokenizer{
		stopwords: stop,
		dict:      make(map[string]string),
	}
}

// AddCustomDict registers word -> token type entries. Dictionary words are
// preferred by the segmentation engine and classified with their registered
// type. Effective for subsequent Tokenize calls only.
func (t *Tokenizer) AddCustomDict(entries map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for word, typ := range entries {
		if word == "" {
			continue
		}
		t.dict[word] = typ
		if t.segErr == nil && t.segLoaded() {
			t.seg.AddToken(word, 100)
		}
	}
}

// AddStopwords adds words to the stopword set.
func (t *Tokenizer) AddStopwords(words ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, w := range words {
		w = normalizeStopword(w)
		if w != "" {
			t.stopwords[w] = struct{}{}
		}
	}
}

// RemoveStopwords removes words from the stopword set.
func (t *Tokenizer) RemoveStopwords(words ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, w := range words {
		delete(t.stopwords, normalizeStopword(w))
	}
}

func normalizeStopword(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

func (t *Tokenizer) segLoaded() bool {
	return t.seg.Dict != nil
}

func (t *Tokenizer) loadEngine() error {
	t.segOnce.Do(func() {
		if err := t.seg.LoadDict(); err != nil {
			t.segErr = err
			return
		}
		for word := range t.dict {
			t.seg.AddToken(word, 100)
		}
	})
	return t.segErr
}

// Tokenize splits text into position-tagged tokens. Empty input yields an
// empty result, never an error. For every returned token,
// text[tok.Start:tok.End] == tok.Text.
func (t *Tokenizer) Tokenize(text string) []common.Token {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var tokens []common.Token
	if containsCJK(text) {
		if err := t.loadEngine(); err == nil {
			tokens = t.segmentTokens(text)
		} else {
			logger.Debug("segmentation engine unavailable, using fallback tokenizer", "err", err)
			tokens = t.fallbackTokens(text)
		}
	} else {
		tokens = t.fallbackTokens(text)
	}

	return t.filterStopwords(tokens)
}

func classifyWord(word string) string {
	var hasHan, hasLetter, hasDigit, hasOther bool
	for _, r := range word {
		switch {
		case unicode.Is(unicode.Han, r):
			hasHan = true
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasOther = true
		}
	}
	switch {
	case hasHan && !hasLetter && !hasDigit && !hasOther:
		return common.TokenTypeChinese
	case hasLetter && !hasHan && !hasDigit && !hasOther:
		return common.TokenTypeEnglish
	case hasDigit && !hasHan && !hasLetter:
		return common.TokenTypeNumber
	case hasHan || hasLetter || hasDigit:
		return common.TokenTypeMixed
	default:
		return common.TokenTypePunctuation
	}
}

func containsCJK(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// segmentTokens runs the word segmentation engine in HMM mode and recovers
// byte offsets by scanning forward for each word's first unconsumed
// occurrence. The cursor never moves backward, so repeated words map to
// successive occurrences.
func (t *Tokenizer) segmentTokens(text string) []common.Token {
	t.mu.RLock()
	defer t.mu.RUnlock()

	words := t.seg.Cut(text, true)
	tokens := make([]common.Token, 0, len(words))

	cursor := 0
	for _, word := range words {
		if word == "" {
			continue
		}
		idx := strings.Index(text[cursor:], word)
		if idx < 0 {
			continue
		}
		start := cursor + idx
		end := start + len(word)
		cursor = end

		typ := classifyWord(word)
		if dictType, ok := t.dict[word]; ok {
			typ = dictType
		} else if typ == common.TokenTypePunctuation {
			continue
		}
		tokens = append(tokens, common.Token{
			Text:  word,
			Start: start,
			End:   end,
			Type:  typ,
		})
	}
	return tokens
}

// fallbackTokens scans CJK ideographs (character granularity), Latin runs
// and numbers as independent token classes, then merges the three scans by
// position.
func (t *Tokenizer) fallbackTokens(text string) []common.Token {
	var tokens []common.Token
	tokens = append(tokens, scanClass(text, cjkCharRe, common.TokenTypeChinese)...)
	tokens = append(tokens, scanClass(text, latinRe, common.TokenTypeEnglish)...)
	tokens = append(tokens, scanClass(text, numberRe, common.TokenTypeNumber)...)

	mergeSortTokens(tokens)

	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range tokens {
		if dictType, ok := t.dict[tokens[i].Text]; ok {
			tokens[i].Type = dictType
		}
	}
	return tokens
}

// scanClass matches re against text with a forward-only cursor. The cursor
// always advances by at least one byte so that zero-width or overlapping
// matches cannot loop forever.
func scanClass(text string, re *regexp.Regexp, typ string) []common.Token {
	var tokens []common.Token
	cursor := 0
	for cursor < len(text) {
		loc := re.FindStringIndex(text[cursor:])
		if loc == nil {
			break
		}
		start := cursor + loc[0]
		end := cursor + loc[1]
		if end > start {
			tokens = append(tokens, common.Token{
				Text:  text[start:end],
				Start: start,
				End:   end,
				Type:  typ,
			})
		}
		if end > cursor {
			cursor = end
		} else {
			cursor++
		}
	}
	return tokens
}

func mergeSortTokens(tokens []common.Token) {
	// Insertion sort by start offset; the three scans are each already
	// ordered so runs are long and nearly sorted.
	for i := 1; i < len(tokens); i++ {
		for j := i; j > 0 && tokens[j].Start < tokens[j-1].Start; j-- {
			tokens[j], tokens[j-1] = tokens[j-1], tokens[j]
		}
	}
}

func (t *Tokenizer) filterStopwords(tokens []common.Token) []common.Token {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]common.Token, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := t.stopwords[normalizeStopword(tok.Text)]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// WordFrequency tokenizes text and counts occurrences by exact token text.
func (t *Tokenizer) WordFrequency(text string) map[string]int {
	freq := make(map[string]int)
	for _, tok := range t.Tokenize(text) {
		freq[tok.Text]++
	}
	return freq
}

// CalculateTFIDF computes the weighted inverse-document-frequency score for
// a token: weight * (ln(totalDocs/(docFrequency+1)) + 1). A zero token
// weight counts as 1.
func CalculateTFIDF(token common.Token, docFrequency, totalDocs int) float64 {
	weight := token.Weight
	if weight == 0 {
		weight = 1
	}
	if totalDocs <= 0 {
		return 0
	}
	return weight * (math.Log(float64(totalDocs)/float64(docFrequency+1)) + 1)
}
