package document

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
)

type mapRecognizer map[string]string

func (m mapRecognizer) Recognize(_ context.Context, img []byte) (string, error) {
	text, ok := m[string(img)]
	if !ok {
		return "", errors.New("unreadable image")
	}
	return text, nil
}

func TestOCRRecognize(t *testing.T) {
	rec := mapRecognizer{
		"p1": "First page",
		"p2": "   ",
		"p4": "Fourth page\n",
	}
	o := &OCR{Recognizer: rec, Concurrency: 3, Logger: discardLogger()}

	text, warnings, err := o.Recognize(context.Background(), [][]byte{[]byte("p1"), []byte("p2"), []byte("p3"), []byte("p4")})
	if err != nil {
		t.Fatalf("Recognize() error: %v", err)
	}
	if text != "First page\n\nFourth page" {
		t.Errorf("text = %q", text)
	}
	if len(warnings) != 1 || warnings[0].Page != 3 || warnings[0].Stage != StageOCR {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestOCRRecognizeEmpty(t *testing.T) {
	o := &OCR{Recognizer: mapRecognizer{}}
	text, warnings, err := o.Recognize(context.Background(), nil)
	if text != "" || warnings != nil || err != nil {
		t.Errorf("Recognize(nil) = %q, %v, %v", text, warnings, err)
	}
}

func TestTesseractArgs(t *testing.T) {
	tests := []struct {
		name string
		t    Tesseract
		want []string
	}{
		{
			name: "defaults",
			t:    Tesseract{},
			want: []string{"stdin", "stdout", "-l", DefaultOCRLanguages},
		},
		{
			name: "tuned",
			t:    Tesseract{Languages: "eng+deu", TessdataDir: "/opt/tessdata", PSM: 6, OEM: 1},
			want: []string{"stdin", "stdout", "-l", "eng+deu", "--tessdata-dir", "/opt/tessdata", "--psm", "6", "--oem", "1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.t.Args(); !slices.Equal(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTesseractRecognize(t *testing.T) {
	runner := &stubRunner{stdout: []byte("Total\t\t42\r\n\n\n\n-----\nThanks  \n")}
	tess := Tesseract{Runner: runner, Binary: "/usr/local/bin/tesseract"}

	text, err := tess.Recognize(context.Background(), []byte("image-bytes"))
	if err != nil {
		t.Fatalf("Recognize() error: %v", err)
	}
	if text != "Total 42\n\nThanks" {
		t.Errorf("text = %q", text)
	}
	if runner.calls[0][0] != "/usr/local/bin/tesseract" {
		t.Errorf("binary = %q", runner.calls[0][0])
	}
	if string(runner.stdins[0]) != "image-bytes" {
		t.Errorf("stdin = %q", runner.stdins[0])
	}
}

func TestTesseractRecognizeFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("exit status 1"), stderr: []byte("Failed loading language 'tel'")}
	_, err := Tesseract{Runner: runner}.Recognize(context.Background(), []byte("img"))
	if err == nil || !strings.Contains(err.Error(), "Failed loading language") {
		t.Fatalf("Recognize() error = %v", err)
	}
}

func TestNormalizeOCR(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"a\r\nb", "a\nb"},
		{"a  \t b", "a b"},
		{"a\n\n\n\nb", "a\n\nb"},
		{"a\f b", "a\n b"},
		{"head\n____\ntail", "head\n\ntail"},
	}
	for _, tt := range tests {
		if got := NormalizeOCR(tt.in); got != tt.want {
			t.Errorf("NormalizeOCR(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
