package document

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/nikhilbhutani/docchat/pkg/textextract"
)

// Parser opens a PDF held in memory.
type Parser interface {
	Open(data []byte) (Document, error)
}

// Document is an open PDF. Pages are 1-based. Implementations need not be
// safe for concurrent use.
type Document interface {
	NumPages() int
	PageText(n int) (string, error)
	Info() textextract.Info
	Close() error
}

// PDFParser is the pure-Go parser backed by ledongthuc/pdf.
type PDFParser struct{}

func (PDFParser) Open(data []byte) (Document, error) {
	doc, err := textextract.OpenPDF(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// FitzParser parses with MuPDF. It handles more damaged and compressed files
// than PDFParser but needs cgo.
type FitzParser struct{}

func (FitzParser) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	if doc.NumPage() <= 0 {
		doc.Close()
		return nil, fmt.Errorf("open PDF: no pages")
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPages() int {
	if d.doc == nil {
		return 0
	}
	return d.doc.NumPage()
}

func (d *fitzDocument) PageText(n int) (string, error) {
	if d.doc == nil {
		return "", textextract.ErrClosed
	}
	text, err := d.doc.Text(n - 1)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", n, err)
	}
	return text, nil
}

func (d *fitzDocument) Info() textextract.Info {
	if d.doc == nil {
		return textextract.Info{}
	}
	meta := d.doc.Metadata()
	return textextract.Info{
		Title:  strings.TrimSpace(meta["title"]),
		Author: strings.TrimSpace(meta["author"]),
	}
}

func (d *fitzDocument) Close() error {
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}

// NewParser returns the parser for a configured backend name.
func NewParser(backend string) (Parser, error) {
	switch backend {
	case "", "ledongthuc", "native":
		return PDFParser{}, nil
	case "fitz", "mupdf":
		return FitzParser{}, nil
	default:
		return nil, fmt.Errorf("unknown parser backend %q", backend)
	}
}
