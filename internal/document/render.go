package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultRenderScale renders pages at 1.5x their natural 72 DPI size.
const DefaultRenderScale = 1.5

// Rasterizer opens a PDF for page rendering.
type Rasterizer interface {
	Open(data []byte) (RasterDocument, error)
}

// RasterDocument renders single pages. Pages are 1-based.
type RasterDocument interface {
	Rasterize(ctx context.Context, page int, scale float64) (*image.RGBA, error)
	Close() error
}

// ImageEncoder turns a rendered page into bytes.
type ImageEncoder interface {
	Encode(img *image.RGBA) ([]byte, error)
}

// PNGEncoder encodes losslessly, which keeps glyph edges intact for OCR.
type PNGEncoder struct {
	Compression png.CompressionLevel
}

func (e PNGEncoder) Encode(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: e.Compression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// PageRenderer renders every page of a document to encoded images.
type PageRenderer interface {
	RenderPages(ctx context.Context, data []byte, pageCount int) ([][]byte, []PageWarning, error)
}

// Renderer renders pages through a Rasterizer and ImageEncoder.
type Renderer struct {
	Rasterizer  Rasterizer
	Encoder     ImageEncoder
	Scale       float64
	Concurrency int
	Logger      *slog.Logger
}

// RenderPages renders pages 1..pageCount and returns the encoded images in
// page order. A page that fails is skipped and reported as a warning; only a
// failure to open the document is returned as an error.
func (r *Renderer) RenderPages(ctx context.Context, data []byte, pageCount int) ([][]byte, []PageWarning, error) {
	if pageCount <= 0 {
		return nil, nil, nil
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scale := r.Scale
	if scale <= 0 {
		scale = DefaultRenderScale
	}
	var enc ImageEncoder = PNGEncoder{}
	if r.Encoder != nil {
		enc = r.Encoder
	}

	doc, err := r.Rasterizer.Open(data)
	if err != nil {
		return nil, nil, fmt.Errorf("open for rendering: %w", err)
	}
	defer doc.Close()

	rendered := make([][]byte, pageCount)
	failures := make([]error, pageCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Concurrency, 1))
	for i := 0; i < pageCount; i++ {
		page := i + 1
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := doc.Rasterize(gctx, page, scale)
			if err != nil {
				failures[i] = err
				return nil
			}
			out, err := enc.Encode(img)
			if err != nil {
				failures[i] = err
				return nil
			}
			rendered[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		images   [][]byte
		warnings []PageWarning
	)
	for i := range rendered {
		if failures[i] != nil {
			w := PageWarning{Stage: StageRender, Page: i + 1, Err: failures[i]}
			logger.Warn("page render failed", "page", w.Page, "error", w.Err)
			warnings = append(warnings, w)
			continue
		}
		images = append(images, rendered[i])
	}
	return images, warnings, nil
}
