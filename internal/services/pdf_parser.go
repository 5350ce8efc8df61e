package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	MethodPDFText   = "pdf_text_extraction"
	MethodPlainText = "plain_text"
)

// DocumentParser turns a stored manifest into per-page text.
type DocumentParser interface {
	ExtractPages(filePath string) (*ParsedDocument, error)
}

type ParsedDocument struct {
	Pages     []string
	PageCount int
	Method    string
	FilePath  string
}

// TextLength is the number of runes across all pages.
func (d *ParsedDocument) TextLength() int {
	n := 0
	for _, p := range d.Pages {
		n += len([]rune(p))
	}
	return n
}

type documentParser struct{}

func NewDocumentParser() DocumentParser {
	return &documentParser{}
}

func (p *documentParser) ExtractPages(filePath string) (*ParsedDocument, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}

	var (
		doc *ParsedDocument
		err error
	)
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		doc, err = p.extractPDF(filePath)
	default:
		doc, err = p.extractPlainText(filePath)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(strings.Join(doc.Pages, "")) == "" {
		return nil, ErrNoTextContent
	}
	return doc, nil
}

func (p *documentParser) extractPDF(filePath string) (*ParsedDocument, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	totalPage := r.NumPage()
	pages := make([]string, 0, totalPage)

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		// Unreadable pages keep their slot so page numbers stay aligned.
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}

	return &ParsedDocument{
		Pages:     pages,
		PageCount: totalPage,
		Method:    MethodPDFText,
		FilePath:  filePath,
	}, nil
}

// Plain-text manifests use form feeds as page breaks.
func (p *documentParser) extractPlainText(filePath string) (*ParsedDocument, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	pages := strings.Split(string(raw), "\f")
	return &ParsedDocument{
		Pages:     pages,
		PageCount: len(pages),
		Method:    MethodPlainText,
		FilePath:  filePath,
	}, nil
}

// CleanText trims every line and drops blank ones.
func CleanText(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	var cleanedLines []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}

	return strings.Join(cleanedLines, "\n")
}
