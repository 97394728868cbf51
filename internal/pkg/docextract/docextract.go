// Package docextract pulls plain text, page by page, out of uploaded PDF and
// DOCX files. It is the only part of the system that looks inside document
// formats; everything downstream works on extracted pages.
package docextract

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

const (
	TypePDF  = "pdf"
	TypeDOCX = "docx"
)

var ErrUnsupportedFormat = errors.New("unsupported file format, only pdf and docx are allowed")

// Page is the extracted text of one document page, 1-based.
type Page struct {
	PageNumber int
	Content    string
}

// Extracted is the page-level text of one uploaded file.
type Extracted struct {
	Filename     string
	DocumentType string
	Pages        []Page
}

// Extract dispatches on the filename extension.
func Extract(r io.Reader, filename string) (*Extracted, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return ExtractPDF(r, filename)
	case ".docx":
		return ExtractDOCX(r, filename)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Text joins all pages into one string, for callers that do not care about
// page boundaries.
func (e *Extracted) Text() string {
	parts := make([]string, 0, len(e.Pages))
	for _, p := range e.Pages {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n")
}
