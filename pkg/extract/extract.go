// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/barekit/lectern/pkg/apperr"
)

// Pages is a paginated document whose text can be read page by page.
// *fitz.Document satisfies it.
type Pages interface {
	NumPage() int
	Text(page int) (string, error)
	Close() error
}

// Opener turns raw bytes into Pages.
type Opener func(data []byte) (Pages, error)

// OpenPDF opens a PDF held in memory with MuPDF.
func OpenPDF(data []byte) (Pages, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Extractor reads the text of an uploaded document.
type Extractor struct {
	open Opener
}

// New creates an Extractor. A nil opener means OpenPDF.
func New(open Opener) *Extractor {
	if open == nil {
		open = OpenPDF
	}
	return &Extractor{open: open}
}

// Extract returns the text of every page in order, each followed by a
// newline. It fails when data is empty, unreadable, or holds no text.
func (e *Extractor) Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.ErrEmptyInput
	}

	doc, err := e.open(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrUnreadableDocument, err)
	}
	defer doc.Close()

	return Join(doc)
}

// Join concatenates the text of every page in doc.
func Join(doc Pages) (string, error) {
	var b strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %w", apperr.ErrUnreadableDocument, i+1, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	out := b.String()
	if strings.TrimSpace(out) == "" {
		return "", apperr.ErrNoExtractableText
	}
	return out, nil
}
