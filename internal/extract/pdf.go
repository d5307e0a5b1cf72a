package extract

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
)

// jpegQuality for rasterized PDF pages fed to OCR.
const jpegQuality = 85

// RenderPDFPages rasterizes up to maxPages pages of a PDF bill into JPEG
// images for OCR. Dealer bills are rarely longer than a page or two;
// callers cap the page count to bound OCR time.
func RenderPDFPages(data []byte, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}

	images := make([][]byte, 0, pages)
	for i := 0; i < pages; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}
		images = append(images, buf.Bytes())
	}

	return images, nil
}
