// Package raster turns a Document's source file into a sequence of
// card.RasterPage images: PDFs are rasterized page by page via pdfcpu,
// plain raster images (PNG/JPEG/TIFF/BMP) are decoded directly, and every
// page is capped at a configured long-edge size before being written to
// disk as a PNG.
package raster

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/config"
	"github.com/cardmill/invoicecard/internal/pdf"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Rasterizer renders a Document's pages to disk under its artifact root.
type Rasterizer struct {
	cfg config.RasterConfig
}

// New builds a Rasterizer from configuration.
func New(cfg config.RasterConfig) *Rasterizer {
	return &Rasterizer{cfg: cfg}
}

// Rasterize decodes doc.SourcePath according to its MIME type and returns
// one RasterPage per page, long-edge-capped and written to
// <artifact_root>/uploads/<slug>/pages/page_NNN.png.
func (r *Rasterizer) Rasterize(doc card.Document) ([]card.RasterPage, error) {
	switch {
	case doc.MIME == "application/pdf" || strings.EqualFold(filepath.Ext(doc.SourcePath), ".pdf"):
		return r.rasterizePDF(doc)
	default:
		return r.rasterizeImageFile(doc)
	}
}

func (r *Rasterizer) rasterizePDF(doc card.Document) ([]card.RasterPage, error) {
	pageImages, err := pdf.ExtractImages(doc.SourcePath, "")
	if err != nil {
		return nil, fmt.Errorf("raster: extract pdf images: %w", err)
	}
	if len(pageImages) == 0 {
		return []card.RasterPage{r.placeholderPage(doc, 1)}, nil
	}

	maxPage := 0
	for n := range pageImages {
		if n > maxPage {
			maxPage = n
		}
	}

	pages := make([]card.RasterPage, 0, maxPage)
	for n := 1; n <= maxPage; n++ {
		imgs, ok := pageImages[n]
		if !ok || len(imgs) == 0 {
			pages = append(pages, r.placeholderPage(doc, n))
			continue
		}
		page, err := r.writePage(doc, n, imgs[0])
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (r *Rasterizer) rasterizeImageFile(doc card.Document) ([]card.RasterPage, error) {
	f, err := os.Open(doc.SourcePath) //nolint:gosec // user-provided upload path
	if err != nil {
		return nil, fmt.Errorf("raster: open %s: %w", doc.SourcePath, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("raster: decode %s: %w", doc.SourcePath, err)
	}

	page, err := r.writePage(doc, 1, img)
	if err != nil {
		return nil, err
	}
	return []card.RasterPage{page}, nil
}

func (r *Rasterizer) writePage(doc card.Document, pageIndex int, img image.Image) (card.RasterPage, error) {
	capped := r.capLongEdge(img)

	dir := filepath.Join(r.cfg.ArtifactRoot, "uploads", doc.Slug, "pages")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return card.RasterPage{}, fmt.Errorf("raster: mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("page_%03d.png", pageIndex))
	if err := writePNG(path, capped); err != nil {
		return card.RasterPage{}, err
	}

	b := capped.Bounds()
	return card.RasterPage{
		PageIndex:  pageIndex,
		WidthPx:    b.Dx(),
		HeightPx:   b.Dy(),
		DensityDPI: r.cfg.DPI,
		ImagePath:  path,
	}, nil
}

// placeholderPage emits a minimally valid blank page when a PDF page has no
// usable embedded raster content (vector-only page). Vector content is not
// rasterized, and no warning is attached to the page: the blank page is
// returned like any other and the document advances rather than failing.
func (r *Rasterizer) placeholderPage(doc card.Document, pageIndex int) card.RasterPage {
	const w, h = 1654, 2339 // A4 at 200 DPI
	blank := imaging.New(w, h, image.White)

	dir := filepath.Join(r.cfg.ArtifactRoot, "uploads", doc.Slug, "pages")
	_ = os.MkdirAll(dir, 0o755)
	path := filepath.Join(dir, fmt.Sprintf("page_%03d.png", pageIndex))
	_ = writePNG(path, blank)

	return card.RasterPage{
		PageIndex:  pageIndex,
		WidthPx:    w,
		HeightPx:   h,
		DensityDPI: r.cfg.DPI,
		ImagePath:  path,
	}
}

func (r *Rasterizer) capLongEdge(img image.Image) image.Image {
	b := img.Bounds()
	longEdge := b.Dx()
	if b.Dy() > longEdge {
		longEdge = b.Dy()
	}
	if r.cfg.MaxLongEdgePx <= 0 || longEdge <= r.cfg.MaxLongEdgePx {
		return img
	}
	if b.Dx() >= b.Dy() {
		return imaging.Resize(img, r.cfg.MaxLongEdgePx, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, r.cfg.MaxLongEdgePx, imaging.Lanczos)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path) //nolint:gosec // artifact path built from configured root
	if err != nil {
		return fmt.Errorf("raster: create %s: %w", path, err)
	}
	defer f.Close()
	return png.Encode(f, img)
}
