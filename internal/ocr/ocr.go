// Package ocr wraps the external OCR capability (tesseract plus the poppler
// pdf tools) behind the engine's TextExtractor contract.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/entity"
)

const stageName = "extraction"

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "kan+eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "kan+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// WithRunner swaps the command runner; tests use this to stub the binaries.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract writes the document bytes to a scratch file and picks a strategy
// from the declared format. Empty OCR output is a successful result with no
// pages of text, per the pipeline's partial-failure policy.
func (e *Extractor) Extract(ctx context.Context, data []byte, format constants.Format) (entity.ExtractionResult, error) {
	if len(data) == 0 {
		return entity.ExtractionResult{}, common.StageError(common.KindBadInput, stageName,
			"EMPTY_DOCUMENT", "document is empty", common.ErrInvalidInput)
	}
	if format == "" {
		format = constants.SniffFormat(data)
	}

	var ext string
	switch format {
	case constants.PDF:
		ext = ".pdf"
	case constants.IMAGE:
		ext = ".png"
	default:
		return entity.ExtractionResult{}, common.StageError(common.KindBadInput, stageName,
			"UNSUPPORTED_FORMAT", fmt.Sprintf("unsupported document format %q", format), common.ErrInvalidInput)
	}

	tmp, err := os.CreateTemp("", "pt-doc-*"+ext)
	if err != nil {
		return entity.ExtractionResult{}, common.StageError(common.KindInternal, stageName,
			"SCRATCH_FILE", "creating scratch file", err)
	}
	path := tmp.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil {
			e.logger.Warn("ocr.scratch.remove_failed", "path", path, "error", rmErr)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return entity.ExtractionResult{}, common.StageError(common.KindInternal, stageName,
			"SCRATCH_FILE", "writing scratch file", err)
	}
	if err := tmp.Close(); err != nil {
		return entity.ExtractionResult{}, common.StageError(common.KindInternal, stageName,
			"SCRATCH_FILE", "closing scratch file", err)
	}

	var res entity.ExtractionResult
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	}
	if err != nil {
		return res, err
	}

	res.CharsOriginal = 0
	for _, p := range res.Pages {
		res.CharsOriginal += len(p)
	}
	res.LanguageHint = detectLanguage(res.Text())

	e.logger.Info("ocr.extract.ok",
		"format", string(format),
		"pages", res.PagesProcessed,
		"chars", res.CharsOriginal,
		"lang", res.LanguageHint,
		"method", res.Method,
	)
	return res, nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) (entity.ExtractionResult, error) {
	txt, warns, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return entity.ExtractionResult{Warnings: warns}, e.externalErr("tesseract", err)
	}
	return entity.ExtractionResult{
		Pages:          []string{txt},
		PagesProcessed: 1,
		Method:         "image-ocr",
		Warnings:       warns,
	}, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (entity.ExtractionResult, error) {
	// pdftotext first; scanned records usually need the raster path, but
	// digitally signed RTC prints carry a real text layer.
	text, pages, warns, err := e.pdfToText(ctx, path)
	if err == nil && meaningfulText(text) {
		return entity.ExtractionResult{
			Pages:          splitPages(text),
			PagesProcessed: pages,
			Method:         "pdf-text",
			Warnings:       warns,
		}, nil
	}
	if err != nil {
		warns = append(warns, fmt.Sprintf("pdftotext: %v", err))
	}

	pageTexts, warns2, err := e.pdfToOCR(ctx, path)
	warns = append(warns, warns2...)
	if err != nil {
		return entity.ExtractionResult{Warnings: warns}, err
	}
	return entity.ExtractionResult{
		Pages:          pageTexts,
		PagesProcessed: len(pageTexts),
		Method:         "pdf-ocr",
		Warnings:       warns,
	}, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (pageTexts []string, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "pt-pp-*")
	if err != nil {
		return nil, nil, common.StageError(common.KindInternal, stageName, "SCRATCH_DIR", "creating raster dir", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.raster.cleanup_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, []string{string(errb)}, e.externalErr("pdftoppm", err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sortPages(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		warnings = append(warnings, fmt.Sprintf("truncated to first %d pages", e.cfg.MaxPages))
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		// not an error: the pipeline handles empty text via the risk scorer
		return nil, append(warnings, "pdftoppm produced no images"), nil
	}

	for _, img := range matches {
		txt, w, ocrErr := e.tesseractOCR(ctx, img)
		warnings = append(warnings, w...)
		if ocrErr != nil {
			if ctx.Err() != nil {
				return nil, warnings, common.FromContextErr(stageName, ctx.Err())
			}
			warnings = append(warnings, ocrErr.Error())
			pageTexts = append(pageTexts, "")
			continue
		}
		pageTexts = append(pageTexts, txt)
	}
	return pageTexts, warnings, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}

func (e *Extractor) externalErr(tool string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return common.FromContextErr(stageName, err)
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return common.StageError(common.KindExternalUnavailable, stageName,
			"OCR_UNAVAILABLE", fmt.Sprintf("%s not available", tool), err)
	}
	return common.StageError(common.KindExternalUnavailable, stageName,
		"OCR_FAILED", fmt.Sprintf("%s failed", tool), err)
}

func splitPages(text string) []string {
	return strings.Split(text, "\f")
}

// sortPages orders pdftoppm output numerically (page-2 before page-10).
func sortPages(paths []string) {
	pageNum := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		idx := strings.LastIndex(base, "-")
		if idx < 0 {
			return 0
		}
		n := 0
		for _, r := range base[idx+1:] {
			if r < '0' || r > '9' {
				return 0
			}
			n = n*10 + int(r-'0')
		}
		return n
	}
	for i := 1; i < len(paths); i++ {
		for j := i; j > 0 && pageNum(paths[j]) < pageNum(paths[j-1]); j-- {
			paths[j], paths[j-1] = paths[j-1], paths[j]
		}
	}
}

// meaningfulText decides whether a pdftotext layer is worth keeping over
// a raster OCR pass.
func meaningfulText(s string) bool {
	printable := 0
	for _, r := range s {
		if r > ' ' {
			printable++
		}
	}
	return printable >= 40
}

// detectLanguage returns "kn" when the text has Kannada codepoints numbering
// at least a quarter of its Latin letters, else "en".
// Deterministic by construction; the translator gates on it.
func detectLanguage(s string) string {
	kannada, latin := 0, 0
	for _, r := range s {
		switch {
		case r >= 0x0C80 && r <= 0x0CFF:
			kannada++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
		}
	}
	if kannada > 0 && kannada*4 >= latin {
		return "kn"
	}
	return "en"
}
