package chunking

import (
	"strings"
	"testing"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	got := s.Split("a short document")
	if len(got) != 1 || got[0] != "a short document" {
		t.Fatalf("expected one chunk, got %v", got)
	}
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(1000, 200)
	if got := s.Split(""); got != nil {
		t.Fatalf("expected nil for empty text, got %v", got)
	}
	if got := s.Split("   \n\t  "); len(got) != 0 {
		t.Fatalf("expected no chunks for whitespace, got %v", got)
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s := NewSplitter(100, 20)
	text := strings.Repeat("word ", 200)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 100 {
			t.Fatalf("chunk %d has %d runes, limit is 100", i, n)
		}
	}
}

func TestSplitOverlapCarriesText(t *testing.T) {
	s := NewSplitter(50, 10)
	text := strings.Repeat("abcde ", 40)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// The tail of each chunk must reappear at the head of the next one.
	for i := 0; i < len(chunks)-1; i++ {
		tail := chunks[i]
		if len(tail) > 5 {
			tail = tail[len(tail)-5:]
		}
		if !strings.Contains(chunks[i+1], strings.TrimSpace(tail)) {
			t.Fatalf("chunk %d tail %q missing from chunk %d: %q", i, tail, i+1, chunks[i+1])
		}
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	first := strings.Repeat("a", 80)
	second := strings.Repeat("b", 80)
	text := first + "\n\n" + second

	s := NewSplitter(100, 0)
	chunks := s.Split(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != first {
		t.Fatalf("first chunk should end at the paragraph break, got %q", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], "b") {
		t.Fatalf("second chunk should start the next paragraph, got %q", chunks[1])
	}
}

func TestSplitUnbrokenTextCutsHard(t *testing.T) {
	s := NewSplitter(50, 0)
	text := strings.Repeat("x", 120)

	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 hard-cut chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 50 || len(chunks[1]) != 50 || len(chunks[2]) != 20 {
		t.Fatalf("chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestSplitterNormalizesBadSettings(t *testing.T) {
	s := NewSplitter(0, -5)
	if s.ChunkSize != 1000 || s.Overlap != 0 {
		t.Fatalf("normalization wrong: %+v", s)
	}
	s = NewSplitter(100, 100)
	if s.Overlap != 25 {
		t.Fatalf("oversized overlap should clamp to a quarter, got %d", s.Overlap)
	}
}

func TestSplitMultibyteRunesSafe(t *testing.T) {
	s := NewSplitter(10, 2)
	text := strings.Repeat("данные ", 10)

	for _, c := range s.Split(text) {
		if strings.ContainsRune(c, '�') {
			t.Fatalf("chunk contains replacement char: %q", c)
		}
	}
}
