package document

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzRasterizer renders pages in-process with MuPDF.
type FitzRasterizer struct{}

func (FitzRasterizer) Open(data []byte) (RasterDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	return &fitzRaster{doc: doc}, nil
}

type fitzRaster struct {
	doc *fitz.Document
}

// Rasterize renders one page. go-fitz serializes calls on a document
// internally, so concurrent callers are safe.
func (f *fitzRaster) Rasterize(ctx context.Context, page int, scale float64) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := f.doc.ImageDPI(page-1, 72*scale)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	return img, nil
}

func (f *fitzRaster) Close() error {
	return f.doc.Close()
}
