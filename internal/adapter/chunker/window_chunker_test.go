package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/lgreg1908/papa-rag/internal/adapter/analyzer"
	"github.com/lgreg1908/papa-rag/internal/domain"
)

func TestWindowChunkerBasic(t *testing.T) {
	tokenizer := analyzer.NewTokenizer()
	c, err := NewWindowChunker(50, 10, tokenizer)
	if err != nil {
		t.Fatal(err)
	}

	doc := domain.Document{
		Path: "/test/file.txt",
		Text: strings.Repeat("alpha beta gamma delta ", 10),
	}

	chunks, err := c.Chunk(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}

	for i, chunk := range chunks {
		if chunk.ID == "" {
			t.Error("chunk has empty ID")
		}
		if chunk.Path != doc.Path {
			t.Errorf("expected path %q, got %q", doc.Path, chunk.Path)
		}
		if chunk.Seq != i {
			t.Errorf("expected seq %d, got %d", i, chunk.Seq)
		}
		if chunk.End <= chunk.Start {
			t.Errorf("End (%d) <= Start (%d)", chunk.End, chunk.Start)
		}
		if got := len([]rune(chunk.Text)); got > 50 {
			t.Errorf("chunk %d exceeds chunk size: %d runes", i, got)
		}
	}
}

func TestWindowChunkerWindowMath(t *testing.T) {
	tokenizer := analyzer.NewTokenizer()
	c, err := NewWindowChunker(100, 20, tokenizer)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("alpha beta ", 30)[:300]
	chunks, err := c.Chunk(domain.Document{Path: "doc.txt", Text: text})
	if err != nil {
		t.Fatal(err)
	}

	// ceil((300-20)/80) = 4 windows
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if got := len([]rune(chunk.Text)); got > 100 {
			t.Errorf("chunk %d too long: %d", i, got)
		}
		if i > 0 {
			prev := chunks[i-1]
			if chunk.Start != prev.Start+80 {
				t.Errorf("chunk %d starts at %d, want %d", i, chunk.Start, prev.Start+80)
			}
			overlap := prev.End - chunk.Start
			if overlap != 20 {
				t.Errorf("chunks %d/%d overlap by %d, want 20", i-1, i, overlap)
			}
			prevTail := string([]rune(text)[chunk.Start:prev.End])
			if !strings.HasPrefix(chunk.Text, prevTail) {
				t.Errorf("chunk %d does not share the 20-char overlap with its predecessor", i)
			}
		}
	}
}

func TestWindowChunkerDeterministic(t *testing.T) {
	tokenizer := analyzer.NewTokenizer()
	c, err := NewWindowChunker(40, 8, tokenizer)
	if err != nil {
		t.Fatal(err)
	}

	doc := domain.Document{Path: "notes/a.md", Text: strings.Repeat("one two three four ", 12)}

	first, err := c.Chunk(doc)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Chunk(doc)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk %d ids differ: %s vs %s", i, first[i].ID, second[i].ID)
		}
		if first[i].Text != second[i].Text {
			t.Errorf("chunk %d texts differ", i)
		}
		if first[i].Start != second[i].Start || first[i].End != second[i].End {
			t.Errorf("chunk %d offsets differ", i)
		}
	}
}

func TestWindowChunkerInvalidConfig(t *testing.T) {
	tokenizer := analyzer.NewTokenizer()

	cases := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"zero chunk size", 0, 0},
		{"negative chunk size", -5, 0},
		{"overlap equals chunk size", 100, 100},
		{"overlap exceeds chunk size", 100, 150},
		{"negative overlap", 100, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWindowChunker(tc.chunkSize, tc.overlap, tokenizer)
			if !errors.Is(err, domain.ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestWindowChunkerEmptyText(t *testing.T) {
	tokenizer := analyzer.NewTokenizer()
	c, err := NewWindowChunker(100, 20, tokenizer)
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := c.Chunk(domain.Document{Path: "empty.txt", Text: ""})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestChunkIDStability(t *testing.T) {
	a := ChunkID("docs/report.txt", 0)
	b := ChunkID("docs/report.txt", 0)
	if a != b {
		t.Errorf("same path and seq produced different ids: %s vs %s", a, b)
	}
	if ChunkID("docs/report.txt", 1) == a {
		t.Error("different seq produced the same id")
	}
	if ChunkID("docs/other.txt", 0) == a {
		t.Error("different path produced the same id")
	}
}
