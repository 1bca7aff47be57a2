package ingest

import (
	"fmt"
	"strings"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

const (
	// DefaultChunkSize is the window length in words.
	DefaultChunkSize = 500
	// DefaultOverlap is the number of words shared by neighbouring windows.
	DefaultOverlap = 50
	// MinChunkChars drops passages whose length is at or below this floor.
	MinChunkChars = 50
)

// ChunkWords splits text into windows of size words advancing by size-overlap.
// The tail window is kept; passages of MinChunkChars or fewer characters are dropped.
func ChunkWords(text string, size, overlap int) ([]string, error) {
	c := Chunker{Size: size, Overlap: overlap, MinChars: MinChunkChars}
	return c.passages(text)
}

// Chunker holds the configured chunking policy.
type Chunker struct {
	Size     int
	Overlap  int
	MinChars int
}

// NewChunker returns a Chunker after checking the window parameters.
func NewChunker(size, overlap int) (Chunker, error) {
	c := Chunker{Size: size, Overlap: overlap, MinChars: MinChunkChars}
	if err := c.validate(); err != nil {
		return Chunker{}, err
	}
	return c, nil
}

func (c Chunker) validate() error {
	if c.Size <= 0 || c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("ingest: chunk size=%d overlap=%d: %w", c.Size, c.Overlap, domain.ErrInvalidChunking)
	}
	return nil
}

func (c Chunker) passages(text string) ([]string, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := c.Size - c.Overlap
	var out []string
	for start := 0; start < len(words); start += step {
		end := min(start+c.Size, len(words))
		p := strings.Join(words[start:end], " ")
		if len(p) <= c.MinChars {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Split chunks a document, numbering the passages that survive the floor.
func (c Chunker) Split(doc domain.Document) ([]domain.Chunk, error) {
	ps, err := c.passages(doc.Text)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(ps))
	for i, p := range ps {
		chunks[i] = domain.Chunk{
			DocumentID: doc.ID,
			Index:      i,
			Text:       p,
			Words:      len(strings.Fields(p)),
		}
	}
	return chunks, nil
}
