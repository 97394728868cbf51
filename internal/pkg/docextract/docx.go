package docextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ExtractDOCX extracts the text of a DOCX file. The format does not expose
// page boundaries without laying the document out, so paragraphs are grouped
// into a single page numbered 1, matching how the rest of the system treats
// unpaginated documents.
func ExtractDOCX(r io.Reader, filename string) (*Extracted, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx failed: %w", err)
	}
	if len(b) == 0 {
		return nil, errors.New("uploaded docx is empty")
	}

	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive failed: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open docx document part failed: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read docx document part failed: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, errors.New("docx has no word/document.xml part")
	}

	text, err := textFromDocumentXML(docXML)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("docx contains no extractable text")
	}

	return &Extracted{
		Filename:     filename,
		DocumentType: TypeDOCX,
		Pages:        []Page{{PageNumber: 1, Content: text}},
	}, nil
}

// textFromDocumentXML walks the WordprocessingML stream collecting the text
// runs (w:t) and inserting newlines at paragraph ends (w:p).
func textFromDocumentXML(docXML []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(docXML))
	var sb strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx xml failed: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
