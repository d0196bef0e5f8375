package answer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Aman-CERP/smarthr/internal/search"
)

const (
	maxPoints      = 5   // bullets shown
	maxSentences   = 5   // sentences in a paragraph answer
	maxSnippets    = 6   // snippets sent to the chat model
	paragraphHits  = 5   // hits mined for sentences
	bulletWidth    = 300 // characters per bullet, placeholder included
	minSentenceLen = 30
)

const (
	ellipsis     = "…"
	noSnippets   = "- _No clear snippets found._"
	noSentences  = "No clear policy sentences were found."
	emptySnippet = "- (empty snippet)"
)

// Bullets lists up to limit hits, each shortened to bulletWidth characters.
func Bullets(hits []search.RetrievalHit, limit int) string {
	var points []string
	for _, h := range hits[:min(len(hits), limit)] {
		t := Shorten(h.Text, bulletWidth)
		if t == "" {
			points = append(points, emptySnippet)
			continue
		}
		points = append(points, "- "+t)
	}
	if len(points) == 0 {
		return noSnippets
	}
	return strings.Join(points, "\n")
}

// Paragraph joins up to limit distinct informative sentences from the top
// hits. Sentences shorter than 30 characters are skipped and duplicates are
// detected case-insensitively.
func Paragraph(hits []search.RetrievalHit, limit int) string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range hits[:min(len(hits), paragraphHits)] {
		for _, s := range Sentences(h.Text) {
			key := strings.ToLower(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
			if len(out) >= limit {
				return strings.Join(out, " ")
			}
		}
	}
	if len(out) == 0 {
		return noSentences
	}
	return strings.Join(out, " ")
}

// Sentences splits text after '.', '!' or '?' followed by whitespace and
// keeps the pieces of at least 30 characters.
func Sentences(text string) []string {
	text = strings.TrimSpace(text)
	runes := []rune(text)

	var out []string
	start := 0
	keep := func(s string) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) >= minSentenceLen {
			out = append(out, s)
		}
	}
	for i := 0; i < len(runes)-1; i++ {
		if !strings.ContainsRune(".!?", runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		keep(string(runes[start : i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		keep(string(runes[start:]))
	}
	return out
}

// Shorten collapses whitespace and, when the text is longer than width
// characters, drops whole trailing words so the result plus "…" fits.
func Shorten(text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= width {
		return text
	}

	budget := width - utf8.RuneCountInString(ellipsis)
	var b strings.Builder
	n := 0
	for _, w := range strings.Fields(text) {
		wl := utf8.RuneCountInString(w)
		sep := 0
		if n > 0 {
			sep = 1
		}
		if n+sep+wl > budget {
			break
		}
		if sep == 1 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		n += sep + wl
	}
	return b.String() + ellipsis
}
