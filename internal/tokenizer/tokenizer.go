// Package tokenizer turns raw chat text into countable word tokens.
//
// It is a pure function layer: no state, no I/O besides the optional
// stopword file loader.
package tokenizer

import (
	"bufio"
	"os"
	"strings"
	"unicode"
)

// Tokenize splits text into tokens of at least minLength runes, dropping
// stopwords, pure digits and pure symbol runs.
//
// Latin-ish words are emitted as-is (lowercased). Runs of CJK characters
// have no delimiters to split on; they are emitted as overlapping bigrams,
// which approximates word frequency well enough for a cloud without pulling
// in a segmentation dependency.
func Tokenize(text string, minLength int, stopwords map[string]struct{}) []string {
	if minLength <= 0 {
		minLength = 1
	}

	var out []string
	emit := func(tok string) {
		if len([]rune(tok)) < minLength {
			return
		}
		if isDigits(tok) {
			return
		}
		if _, ok := stopwords[tok]; ok {
			return
		}
		out = append(out, tok)
	}

	var word []rune // current latin/digit run
	var cjk []rune  // current CJK run

	flushWord := func() {
		if len(word) > 0 {
			emit(strings.ToLower(string(word)))
			word = word[:0]
		}
	}
	flushCJK := func() {
		if len(cjk) == 1 {
			emit(string(cjk))
		} else {
			for i := 0; i+1 < len(cjk); i++ {
				emit(string(cjk[i : i+2]))
			}
		}
		cjk = cjk[:0]
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flushWord()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\'':
			if len(cjk) > 0 {
				flushCJK()
			}
			word = append(word, r)
		default:
			flushWord()
			if len(cjk) > 0 {
				flushCJK()
			}
		}
	}
	flushWord()
	if len(cjk) > 0 {
		flushCJK()
	}
	return out
}

// Frequencies tokenizes every text and aggregates token counts.
func Frequencies(texts []string, minLength int, stopwords map[string]struct{}) map[string]int {
	freqs := make(map[string]int)
	for _, t := range texts {
		for _, tok := range Tokenize(t, minLength, stopwords) {
			freqs[tok]++
		}
	}
	return freqs
}

// LoadStopwords reads one stopword per line from path and merges the result
// with the built-in default list. A missing file yields just the defaults.
func LoadStopwords(path string) map[string]struct{} {
	set := make(map[string]struct{}, len(defaultStopwords))
	for _, w := range defaultStopwords {
		set[w] = struct{}{}
	}
	if path == "" {
		return set
	}
	f, err := os.Open(path)
	if err != nil {
		return set
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w != "" && !strings.HasPrefix(w, "#") {
			set[strings.ToLower(w)] = struct{}{}
		}
	}
	return set
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
