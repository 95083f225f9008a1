package cv

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoContent is returned when a document has no extractable text.
var ErrNoContent = errors.New("no content found in document")

// LoadPDF extracts the plain text of every page of the PDF at path.
// Pages without text are skipped; page numbers are 1-based.
func LoadPDF(path string) ([]Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cv file %q: %w", path, err)
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %q: %w", path, err)
	}
	defer file.Close()

	docs := make([]Document, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract text from page %d: %w", i, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		docs = append(docs, Document{Source: path, Page: i, Text: text})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoContent)
	}

	return docs, nil
}
