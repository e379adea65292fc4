package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// ErrNoText means no method produced readable text. Image-only and
// encrypted PDFs end up here.
var ErrNoText = errors.New("no readable text could be extracted from PDF")

// PageBreak separates pages in extracted text.
const PageBreak = "\f"

// Extractor turns PDF bytes into statement text, one page per form-feed
// separated chunk.
type Extractor struct {
	// EnableOCR allows the pdftoppm + tesseract fallback for scanned PDFs.
	EnableOCR bool
	Log       zerolog.Logger

	lookPath func(string) (string, error)
}

// New returns an Extractor.
func New(enableOCR bool, log zerolog.Logger) *Extractor {
	return &Extractor{EnableOCR: enableOCR, Log: log, lookPath: exec.LookPath}
}

// Extract tries the PDF library first, then pdftotext, then OCR when
// enabled. Unreadable output is never returned.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	pages, libErr := extractWithLibrary(data)
	if libErr == nil && isReadableText(pages) {
		e.Log.Debug().Str("method", "library").Int("pages", len(pages)).Msg("text extracted")
		return joinPages(pages), nil
	}
	if libErr != nil {
		e.Log.Debug().Err(libErr).Msg("pdf library extraction failed")
	}

	path, cleanup, err := writeTemp(data)
	if err != nil {
		return "", err
	}
	defer cleanup()

	popplerPages, popplerErr := e.extractWithPdftotext(ctx, path)
	if popplerErr == nil && isReadableText(popplerPages) {
		e.Log.Debug().Str("method", "pdftotext").Int("pages", len(popplerPages)).Msg("text extracted")
		return joinPages(popplerPages), nil
	}
	if popplerErr != nil {
		e.Log.Debug().Err(popplerErr).Msg("pdftotext extraction failed")
	}

	if e.EnableOCR && !hasAlnum(pages) && !hasAlnum(popplerPages) {
		ocrPages, ocrErr := e.extractWithOCR(ctx, path)
		if ocrErr == nil && isReadableText(ocrPages) {
			e.Log.Info().Str("method", "ocr").Int("pages", len(ocrPages)).Msg("text extracted")
			return joinPages(ocrPages), nil
		}
		if ocrErr != nil {
			e.Log.Warn().Err(ocrErr).Msg("OCR extraction failed")
		}
	}

	if libErr != nil {
		return "", fmt.Errorf("%w: %v", ErrNoText, libErr)
	}
	return "", ErrNoText
}

func joinPages(pages []string) string {
	return strings.Join(pages, PageBreak)
}

func writeTemp(data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to save uploaded file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}

// textQuality returns the ratio of basic ASCII readable characters (a-z, A-Z,
// 0-9, common punctuation, whitespace) to total characters.
// unicode.IsLetter is too broad here: identity-encoded fonts decode to
// accented garbage.
func textQuality(pages []string) float64 {
	total := 0
	readable := 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
				strings.ContainsRune(".,-/:;()'\"£$€%&@#!?+=*", r) {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// commonWords appear in virtually every bank statement.
var commonWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "sort code",
	"money", "paid", "opening", "closing", "transfer", "direct",
	"number", "page", "period",
}

func containsCommonWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText requires more than 50 characters, over 60% readable ASCII
// and at least one word expected on a statement.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= 50 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	return containsCommonWords(pages)
}

// IsReadableText reports whether text passes the readability checks.
func IsReadableText(text string) bool {
	return isReadableText(strings.Split(text, PageBreak))
}

func hasAlnum(pages []string) bool {
	for _, p := range pages {
		if strings.IndexFunc(p, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			return true
		}
	}
	return false
}

// extractWithPdftotext runs pdftotext from poppler-utils page by page so
// page boundaries survive.
func (e *Extractor) extractWithPdftotext(ctx context.Context, path string) ([]string, error) {
	if _, err := e.lookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available: %w", err)
	}

	numPages := pageCount(ctx, path)
	if numPages == 0 {
		numPages = 1
	}

	var pages []string
	for i := 1; i <= numPages; i++ {
		n := strconv.Itoa(i)
		out, err := exec.CommandContext(ctx, "pdftotext", "-layout", "-f", n, "-l", n, path, "-").Output()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) > 0 {
		return pages, nil
	}

	out, err := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}
	if text := strings.TrimSpace(string(out)); text != "" {
		return []string{text}, nil
	}
	return nil, fmt.Errorf("pdftotext produced no output")
}

// pageCount asks pdfinfo for the page count; 0 when unknown.
func pageCount(ctx context.Context, path string) int {
	out, err := exec.CommandContext(ctx, "pdfinfo", path).Output()
	if err != nil {
		return 0
	}
	return parsePageCount(string(out))
}

func parsePageCount(info string) int {
	for _, line := range strings.Split(info, "\n") {
		if strings.HasPrefix(line, "Pages:") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
			if err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// extractWithLibrary uses ledongthuc/pdf, row-based first, then plain text.
func extractWithLibrary(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	pages = extractByRow(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	pages = extractByPagePlainText(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	if text := extractByReaderPlainText(r); isReadableText([]string{text}) {
		return []string{text}, nil
	}
	return pages, nil
}

// extractByRow keeps the visual row layout, one line per text row.
func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func extractByPagePlainText(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return pages
}

func extractByReaderPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
