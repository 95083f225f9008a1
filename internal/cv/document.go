// Package cv turns a CV document into text chunks ready for embedding.
package cv

import (
	"crypto/sha256"
	"encoding/hex"
)

// Document is the text of a single page of the source file.
type Document struct {
	Source string
	Page   int
	Text   string
}

// Chunk is an overlapping window of document text.
type Chunk struct {
	// ID is the hex SHA-256 of Text. Equal texts share an ID.
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Page   int    `json:"page" yaml:"page"`
	Index  int    `json:"index" yaml:"index"`
	Text   string `json:"text" yaml:"text"`
}

// HashText returns the identifier used for a chunk text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Chunks is an ordered list of chunks.
type Chunks struct {
	Items []*Chunk
}

func (c *Chunks) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// Texts returns the chunk texts in order.
func (c *Chunks) Texts() []string {
	texts := make([]string, 0, c.Len())
	for _, chunk := range c.Items {
		texts = append(texts, chunk.Text)
	}
	return texts
}

// Remove drops every chunk for which drop returns true and returns the IDs of the dropped chunks.
// Order of the remaining chunks is preserved.
func (c *Chunks) Remove(drop func(*Chunk) bool) []string {
	var removed []string
	kept := c.Items[:0]
	for _, chunk := range c.Items {
		if drop(chunk) {
			removed = append(removed, chunk.ID)
			continue
		}
		kept = append(kept, chunk)
	}
	for i := len(kept); i < len(c.Items); i++ {
		c.Items[i] = nil
	}
	c.Items = kept
	return removed
}

// Pages returns the number of distinct pages covered by the chunks.
func (c *Chunks) Pages() int {
	seen := make(map[int]struct{})
	for _, chunk := range c.Items {
		seen[chunk.Page] = struct{}{}
	}
	return len(seen)
}
