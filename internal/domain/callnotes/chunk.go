package callnotes

import "strings"

// Chunk splits text into consecutive groups of at most maxWords whitespace-delimited words.
// Each group is rejoined with single spaces, so original spacing and line breaks are not kept.
// A non-positive maxWords selects DefaultMaxWords.
func Chunk(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := min(start+maxWords, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
