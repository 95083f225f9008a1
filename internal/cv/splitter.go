package cv

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into windows of at most ChunkSize runes, preferring to
// break on paragraphs, then lines, then words. Consecutive windows share up to
// ChunkOverlap runes of context.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	// Separators are tried in order. The empty separator splits into runes.
	Separators []string
}

func NewSplitter(size, overlap int) *Splitter {
	return &Splitter{ChunkSize: size, ChunkOverlap: overlap}
}

func (s *Splitter) Validate() error {
	if s.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", s.ChunkSize)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", s.ChunkSize, s.ChunkOverlap)
	}
	return nil
}

// SplitDocuments splits every document and numbers the resulting chunks in order.
func (s *Splitter) SplitDocuments(docs []Document) (*Chunks, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	chunks := &Chunks{}
	for _, doc := range docs {
		for _, text := range s.SplitText(doc.Text) {
			chunks.Items = append(chunks.Items, &Chunk{
				ID:     HashText(text),
				Source: doc.Source,
				Page:   doc.Page,
				Index:  len(chunks.Items),
				Text:   text,
			})
		}
	}
	return chunks, nil
}

// SplitText splits a single text. It assumes the splitter is valid.
func (s *Splitter) SplitText(text string) []string {
	separators := s.Separators
	if len(separators) == 0 {
		separators = defaultSeparators
	}
	return s.split(text, separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, candidate := range separators {
		if candidate == "" {
			separator = ""
			break
		}
		if strings.Contains(text, candidate) {
			separator = candidate
			next = separators[i+1:]
			break
		}
	}

	var (
		chunks []string
		good   []string
	)
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}

		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}

		if len(next) == 0 {
			chunks = append(chunks, strings.TrimSpace(piece))
			continue
		}
		chunks = append(chunks, s.split(piece, next)...)
	}

	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}

	return chunks
}

// merge packs pieces greedily into chunks. Separators already live inside the
// pieces, so they are concatenated as is.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		total   int
	)

	for _, piece := range pieces {
		size := runeLen(piece)

		if total+size > s.ChunkSize && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}

			for len(current) > 0 && (total > s.ChunkOverlap || total+size > s.ChunkSize) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}

		current = append(current, piece)
		total += size
	}

	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

// splitKeepingSeparator splits text on sep and glues the separator to the
// start of the following piece. Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	var raw []string
	if sep == "" {
		raw = make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			raw = append(raw, string(r))
		}
	} else {
		parts := strings.Split(text, sep)
		raw = make([]string, 0, len(parts))
		raw = append(raw, parts[0])
		for _, part := range parts[1:] {
			raw = append(raw, sep+part)
		}
	}

	pieces := raw[:0]
	for _, piece := range raw {
		if piece != "" {
			pieces = append(pieces, piece)
		}
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
