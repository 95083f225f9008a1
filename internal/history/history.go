// Package history remembers which recipients already got a draft.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is a drafted email.
type Entry struct {
	URL       string    `yaml:"url"`
	Recipient string    `yaml:"recipient,omitempty"`
	Email     string    `yaml:"email,omitempty"`
	Subject   string    `yaml:"subject,omitempty"`
	FitScore  float64   `yaml:"fit-score"`
	DraftedAt time.Time `yaml:"drafted-at"`
}

type document struct {
	Drafts []Entry `yaml:"drafts"`
}

// File is a YAML file of drafted emails. A missing file is treated as empty.
type File struct {
	path string
	mu   sync.Mutex
}

func Open(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Entries returns every recorded draft in file order.
func (f *File) Entries() ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	return doc.Drafts, nil
}

// Find returns the latest entry for url.
func (f *File) Find(url string) (*Entry, bool, error) {
	entries, err := f.Entries()
	if err != nil {
		return nil, false, err
	}
	key := normalizeURL(url)
	for i := len(entries) - 1; i >= 0; i-- {
		if normalizeURL(entries[i].URL) == key {
			return &entries[i], true, nil
		}
	}
	return nil, false, nil
}

// Append records entry and rewrites the file.
func (f *File) Append(entry Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if entry.DraftedAt.IsZero() {
		entry.DraftedAt = time.Now().UTC()
	}
	doc.Drafts = append(doc.Drafts, entry)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func (f *File) read() (*document, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", f.path, err)
	}
	return &doc, nil
}

func normalizeURL(url string) string {
	url = strings.ToLower(strings.TrimSpace(url))
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "www.")
	return strings.TrimSuffix(url, "/")
}
