package textextract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// buildPDF writes a minimal PDF with one Helvetica text line per page and an
// optional Info dictionary.
func buildPDF(t *testing.T, title, author string, pages []string) []byte {
	t.Helper()

	var objs []string
	n := len(pages)
	// 1 catalog, 2 pages, 3 font, 4 info, then page/content pairs.
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	var info []string
	if title != "" {
		info = append(info, fmt.Sprintf("/Title (%s)", title))
	}
	if author != "" {
		info = append(info, fmt.Sprintf("/Author (%s)", author))
	}
	objs = append(objs, fmt.Sprintf("<< %s >>", strings.Join(info, " ")))

	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 6+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestExtractPDF(t *testing.T) {
	data := buildPDF(t, "Report", "Ada", []string{"First page text", "Second page text"})

	got, err := ExtractPDF(data)
	if err != nil {
		t.Fatalf("ExtractPDF() error: %v", err)
	}
	if got.Pages != 2 {
		t.Errorf("Pages = %d, want 2", got.Pages)
	}
	first := strings.Index(got.Content, "First page text")
	second := strings.Index(got.Content, "Second page text")
	if first < 0 || second < 0 || first > second {
		t.Errorf("Content = %q, want both pages in order", got.Content)
	}
	if got.Metadata["title"] != "Report" {
		t.Errorf("title = %q, want Report", got.Metadata["title"])
	}
	if got.Metadata["author"] != "Ada" {
		t.Errorf("author = %q, want Ada", got.Metadata["author"])
	}
	if len(got.FailedPages) != 0 {
		t.Errorf("FailedPages = %v, want none", got.FailedPages)
	}
}

func TestOpenPDFInfoAbsent(t *testing.T) {
	doc, err := OpenPDF(buildPDF(t, "", "", []string{"only"}))
	if err != nil {
		t.Fatalf("OpenPDF() error: %v", err)
	}
	defer doc.Close()

	if info := doc.Info(); info.Title != "" || info.Author != "" {
		t.Errorf("Info() = %+v, want empty", info)
	}
}

func TestOpenPDFRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not a pdf at all"), []byte("%PDF-1.4\ntruncated")} {
		if _, err := OpenPDF(data); !errors.Is(err, ErrUnreadable) {
			t.Errorf("OpenPDF(%q) error = %v, want ErrUnreadable", data, err)
		}
	}
}

func TestPageTextAfterClose(t *testing.T) {
	doc, err := OpenPDF(buildPDF(t, "", "", []string{"x"}))
	if err != nil {
		t.Fatalf("OpenPDF() error: %v", err)
	}
	doc.Close()
	doc.Close()

	if _, err := doc.PageText(1); !errors.Is(err, ErrClosed) {
		t.Errorf("PageText() after Close error = %v, want ErrClosed", err)
	}
}

func TestCollectPagesIsolatesFailures(t *testing.T) {
	pages := map[int]string{1: "alpha", 3: "gamma"}
	text, failed := collectPages(3, func(n int) (string, error) {
		if n == 2 {
			return "", errors.New("corrupt content stream")
		}
		return pages[n], nil
	})

	if text != "alpha\n\ngamma" {
		t.Errorf("text = %q, want %q", text, "alpha\n\ngamma")
	}
	if len(failed) != 1 || failed[0] != 2 {
		t.Errorf("failed = %v, want [2]", failed)
	}
}

func TestExtractDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(w, `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		`<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Second</w:t></w:r></w:p></w:body></w:document>`)
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := Extract(buf.Bytes(), "docx")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if got.Content != "Hello world\nSecond" {
		t.Errorf("Content = %q", got.Content)
	}
}

func TestExtractUnsupported(t *testing.T) {
	if _, err := Extract([]byte("x"), "image/png"); err == nil {
		t.Fatal("Extract() expected error for image/png")
	}
}
