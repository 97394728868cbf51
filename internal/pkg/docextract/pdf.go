package docextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ExtractPDF extracts the text of every page of a PDF, keeping 1-based page
// numbers so citations can point back into the original file.
func ExtractPDF(r io.Reader, filename string) (*Extracted, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf failed: %w", err)
	}
	if len(b) == 0 {
		return nil, errors.New("uploaded pdf is empty")
	}

	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	total := pdfReader.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the whole upload.
			continue
		}
		pages = append(pages, Page{PageNumber: i, Content: text})
	}
	if len(pages) == 0 {
		return nil, errors.New("pdf contains no extractable text")
	}

	return &Extracted{
		Filename:     filename,
		DocumentType: TypePDF,
		Pages:        pages,
	}, nil
}
