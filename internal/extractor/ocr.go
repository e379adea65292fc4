package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// IsOCRAvailable reports whether pdftoppm and tesseract are installed.
func (e *Extractor) IsOCRAvailable() bool {
	_, err1 := e.lookPath("pdftoppm")
	_, err2 := e.lookPath("tesseract")
	return err1 == nil && err2 == nil
}

// extractWithOCR renders every page to a 300 DPI PNG with pdftoppm and runs
// tesseract over each image. Pages that fail are skipped.
func (e *Extractor) extractWithOCR(ctx context.Context, path string) ([]string, error) {
	if _, err := e.lookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm not available (install poppler-utils): %w", err)
	}
	if _, err := e.lookPath("tesseract"); err != nil {
		return nil, fmt.Errorf("tesseract not available (install tesseract-ocr): %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "ocr-pages-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	cmd := exec.CommandContext(ctx, "pdftoppm", "-r", "300", "-png", path, filepath.Join(tmpDir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, out)
	}

	images, err := pageImages(tmpDir)
	if err != nil {
		return nil, err
	}

	var pages []string
	for _, img := range images {
		outBase := strings.TrimSuffix(img, ".png") + "-ocr"
		// PSM 4: a single column of text of variable sizes.
		cmd := exec.CommandContext(ctx, "tesseract", img, outBase, "-l", "eng", "--psm", "4")
		if out, err := cmd.CombinedOutput(); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.Log.Warn().Err(err).Str("image", filepath.Base(img)).Bytes("output", out).Msg("tesseract failed on page")
			continue
		}
		data, err := os.ReadFile(outBase + ".txt")
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("tesseract OCR produced no text from %d page images", len(images))
	}
	return pages, nil
}

// pageImages lists the PNGs in dir in page order. pdftoppm zero-pads page
// numbers, so a name sort is a page sort.
func pageImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read temp dir: %w", err)
	}
	var images []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".png") {
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no page images")
	}
	sort.Strings(images)
	return images, nil
}
