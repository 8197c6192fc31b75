package document

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultOCRLanguages is the tesseract language bundle used when none is
// configured.
const DefaultOCRLanguages = "eng+tel+hin+ara+chi_sim+chi_tra+jpn+kor+rus+spa+fra+deu"

// ImageRecognizer reads the text in one encoded image.
type ImageRecognizer interface {
	Recognize(ctx context.Context, img []byte) (string, error)
}

// OCREngine recognizes text across a set of page images.
type OCREngine interface {
	Recognize(ctx context.Context, images [][]byte) (string, []PageWarning, error)
}

// OCR runs an ImageRecognizer over each image independently.
type OCR struct {
	Recognizer  ImageRecognizer
	Concurrency int
	Logger      *slog.Logger
}

// Recognize returns the non-empty per-image results, in image order, joined
// by a blank line. Images that fail are reported as warnings. The only error
// is context cancellation.
func (o *OCR) Recognize(ctx context.Context, images [][]byte) (string, []PageWarning, error) {
	if len(images) == 0 {
		return "", nil, nil
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	texts := make([]string, len(images))
	failures := make([]error, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.Concurrency, 1))
	for i, img := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := o.Recognizer.Recognize(gctx, img)
			if err != nil {
				failures[i] = err
				return nil
			}
			texts[i] = strings.TrimSpace(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, err
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	var (
		parts    []string
		warnings []PageWarning
	)
	for i, text := range texts {
		if failures[i] != nil {
			w := PageWarning{Stage: StageOCR, Page: i + 1, Err: failures[i]}
			logger.Warn("image OCR failed", "image", w.Page, "error", w.Err)
			warnings = append(warnings, w)
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), warnings, nil
}

// Tesseract recognizes images with the tesseract CLI, feeding the image on
// stdin and reading text from stdout.
type Tesseract struct {
	Runner      Runner
	Binary      string
	Languages   string
	TessdataDir string
	PSM         int // page segmentation mode; 0 keeps tesseract's default
	OEM         int // engine mode; 0 keeps tesseract's default
}

func (t Tesseract) Args() []string {
	langs := t.Languages
	if langs == "" {
		langs = DefaultOCRLanguages
	}
	args := []string{"stdin", "stdout", "-l", langs}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	if t.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.PSM))
	}
	if t.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.OEM))
	}
	return args
}

func (t Tesseract) Recognize(ctx context.Context, img []byte) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	var runner Runner = ExecRunner{}
	if t.Runner != nil {
		runner = t.Runner
	}

	stdout, stderr, err := runner.Run(ctx, bytes.NewReader(img), bin, t.Args()...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(stderr)), 512))
	}
	return NormalizeOCR(string(stdout)), nil
}
