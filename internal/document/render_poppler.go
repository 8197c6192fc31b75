package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// PopplerRasterizer renders pages with poppler's pdftoppm.
type PopplerRasterizer struct {
	Runner Runner
	Binary string
}

func (p PopplerRasterizer) Open(data []byte) (RasterDocument, error) {
	dir, err := os.MkdirTemp("", "docchat-render-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	path := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("write temp PDF: %w", err)
	}

	bin := p.Binary
	if bin == "" {
		bin = "pdftoppm"
	}
	var runner Runner = ExecRunner{}
	if p.Runner != nil {
		runner = p.Runner
	}
	return &popplerDoc{runner: runner, bin: bin, dir: dir, path: path}, nil
}

type popplerDoc struct {
	runner Runner
	bin    string
	dir    string
	path   string
}

func (d *popplerDoc) Rasterize(ctx context.Context, page int, scale float64) (*image.RGBA, error) {
	dpi := int(math.Round(72 * scale))
	n := strconv.Itoa(page)
	stdout, stderr, err := d.runner.Run(ctx, nil, d.bin,
		"-r", strconv.Itoa(dpi),
		"-f", n, "-l", n,
		"-png", "-singlefile",
		d.path,
	)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, truncate(string(stderr), 512))
	}
	img, err := png.Decode(bytes.NewReader(stdout))
	if err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	return toRGBA(img), nil
}

func (d *popplerDoc) Close() error {
	return os.RemoveAll(d.dir)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
