package ingest

import "unicode"

// SplitChunks splits whitespace-collapsed text into chunks of at most size
// characters, breaking at the last whitespace that keeps the chunk within
// size. A word longer than size is cut at size. Chunks are trimmed.
func SplitChunks(s string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(s)

	var chunks []string
	for p := 0; p < len(runes); {
		if unicode.IsSpace(runes[p]) {
			p++
			continue
		}
		end := p + size
		if end >= len(runes) {
			chunks = append(chunks, CleanText(string(runes[p:])))
			break
		}

		cut := end
		for j := end; j > p; j-- {
			if unicode.IsSpace(runes[j]) {
				cut = j
				break
			}
		}
		chunks = append(chunks, CleanText(string(runes[p:cut])))
		p = cut
	}
	return chunks
}
