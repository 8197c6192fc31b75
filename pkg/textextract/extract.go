package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadable means the buffer could not be opened as a document at all.
var ErrUnreadable = errors.New("unreadable document")

// ErrClosed is returned by page access after Close.
var ErrClosed = errors.New("document closed")

type ExtractedText struct {
	Content     string
	Pages       int
	FailedPages []int
	Metadata    map[string]string
}

// Info is the document information dictionary subset we surface.
type Info struct {
	Title  string
	Author string
}

func Extract(data []byte, fileType string) (*ExtractedText, error) {
	switch strings.ToLower(fileType) {
	case ".pdf", "pdf", "application/pdf":
		return ExtractPDF(data)
	case ".docx", "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return extractDOCX(data)
	case ".txt", "txt", "text/plain", ".md", "md", "text/markdown", "text/csv":
		return extractTXT(data)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

func SupportedTypes() []string {
	return []string{"application/pdf", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "text/plain", "text/markdown", "text/csv"}
}

// PDF is an open PDF document. It is not safe for concurrent use.
type PDF struct {
	reader *pdf.Reader
	pages  int
}

// OpenPDF parses data as a PDF. Encrypted documents are only readable when
// the empty user password unlocks them.
func OpenPDF(data []byte) (doc *PDF, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: parser panic: %v", ErrUnreadable, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open PDF: %w", ErrUnreadable, err)
	}

	n := reader.NumPage()
	if n <= 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", ErrUnreadable)
	}

	return &PDF{reader: reader, pages: n}, nil
}

func (d *PDF) NumPages() int { return d.pages }

// PageText returns the plain text of page n (1-based). A parser panic on the
// page is returned as an error for that page only.
func (d *PDF) PageText(n int) (text string, err error) {
	if d.reader == nil {
		return "", ErrClosed
	}
	if n < 1 || n > d.pages {
		return "", fmt.Errorf("page %d out of range [1,%d]", n, d.pages)
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("page %d: parser panic: %v", n, r)
		}
	}()

	page := d.reader.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: missing page object", n)
	}

	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", n, err)
	}
	return text, nil
}

// Info reads Title and Author from the trailer's Info dictionary. Missing
// entries stay empty.
func (d *PDF) Info() (info Info) {
	if d.reader == nil {
		return Info{}
	}
	defer func() {
		if recover() != nil {
			info = Info{}
		}
	}()

	dict := d.reader.Trailer().Key("Info")
	if dict.IsNull() {
		return Info{}
	}
	return Info{
		Title:  cleanInfo(dict.Key("Title").Text()),
		Author: cleanInfo(dict.Key("Author").Text()),
	}
}

// Close drops the parser state. It is safe to call more than once.
func (d *PDF) Close() error {
	d.reader = nil
	return nil
}

func cleanInfo(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
	if !utf8.ValidString(s) {
		return ""
	}
	return s
}

// ExtractPDF opens data and concatenates the text of every page, in page
// order, separated by a single newline. Pages that fail contribute empty text
// and are listed in FailedPages.
func ExtractPDF(data []byte) (*ExtractedText, error) {
	doc, err := OpenPDF(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	content, failed := collectPages(doc.NumPages(), doc.PageText)
	info := doc.Info()

	meta := map[string]string{"type": "pdf"}
	if info.Title != "" {
		meta["title"] = info.Title
	}
	if info.Author != "" {
		meta["author"] = info.Author
	}

	return &ExtractedText{
		Content:     content,
		Pages:       doc.NumPages(),
		FailedPages: failed,
		Metadata:    meta,
	}, nil
}

func collectPages(n int, pageText func(int) (string, error)) (string, []int) {
	var (
		buf    strings.Builder
		failed []int
	)
	for i := 1; i <= n; i++ {
		if i > 1 {
			buf.WriteByte('\n')
		}
		text, err := pageText(i)
		if err != nil {
			failed = append(failed, i)
			continue
		}
		buf.WriteString(text)
	}
	return strings.TrimSpace(buf.String()), failed
}

func extractDOCX(data []byte) (*ExtractedText, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	for _, f := range reader.File {
		if path.Clean(f.Name) != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()

		text, err := docxText(rc)
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		return &ExtractedText{
			Content:  text,
			Pages:    1,
			Metadata: map[string]string{"type": "docx"},
		}, nil
	}

	return nil, fmt.Errorf("open DOCX: word/document.xml not found")
}

// docxText collects w:t runs, breaking lines at paragraph ends.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		buf    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				buf.WriteByte('\t')
			case "br":
				buf.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				buf.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func extractTXT(data []byte) (*ExtractedText, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("read TXT: content is not valid UTF-8")
	}
	return &ExtractedText{
		Content:  string(bytes.TrimSpace(data)),
		Pages:    1,
		Metadata: map[string]string{"type": "txt"},
	}, nil
}
