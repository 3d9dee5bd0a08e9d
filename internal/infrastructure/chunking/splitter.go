package chunking

import "strings"

// Splitter cuts text into overlapping windows of at most ChunkSize runes.
// Window ends are pulled back to the nearest paragraph, line, or space
// boundary when one falls in the last quarter of the window, so chunks
// tend to end on natural breaks instead of mid-word.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

// breakPoint searches backwards from end for the best boundary, but never
// further than a quarter of the window so short chunks cannot occur.
func breakPoint(runes []rune, start, end int) int {
	floor := end - (end-start)/4
	for _, sep := range []string{"\n\n", "\n", " "} {
		window := string(runes[floor:end])
		if idx := strings.LastIndex(window, sep); idx >= 0 {
			cut := floor + len([]rune(window[:idx])) + len([]rune(sep))
			if cut > start {
				return cut
			}
		}
	}
	return end
}
