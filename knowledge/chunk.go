package knowledge

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the target chunk length in characters.
const DefaultChunkSize = 1000

// Chunk splits text into chunks of whole paragraphs, each at most size
// characters unless a single paragraph is longer. Blank lines separate
// paragraphs.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var (
		chunks []string
		cur    strings.Builder
		n      int
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			n = 0
		}
	}
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		l := utf8.RuneCountInString(para)
		if n > 0 && n+2+l > size {
			flush()
		}
		if n > 0 {
			cur.WriteString("\n\n")
			n += 2
		}
		cur.WriteString(para)
		n += l
	}
	flush()
	return chunks
}
