package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
)

var pageFilePattern = regexp.MustCompile(`^page-(\d+)\.png$`)

// PageCounter reads the page count of a PDF before it is rendered.
type PageCounter interface {
	PageCount(data []byte) (int, error)
}

// PDFInspector validates with pdfcpu in relaxed mode and falls back to the
// more lenient ledongthuc reader when pdfcpu rejects the file.
type PDFInspector struct{}

func (PDFInspector) PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err == nil {
		return ctx.PageCount, nil
	}

	reader, rerr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if rerr != nil {
		return 0, errors.Join(fmt.Errorf("pdfcpu validate: %w", err), fmt.Errorf("open PDF: %w", rerr))
	}
	return reader.NumPage(), nil
}

type RasterizerConfig struct {
	Binary   string
	ScaleTo  int
	MaxPages int
	TempDir  string
}

type PDFRasterizer struct {
	cfg     RasterizerConfig
	runner  Runner
	counter PageCounter
	log     *slog.Logger
}

func NewPDFRasterizer(cfg RasterizerConfig, runner Runner, counter PageCounter, log *slog.Logger) *PDFRasterizer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "pdftocairo"
	}
	if cfg.ScaleTo <= 0 {
		cfg.ScaleTo = 1024
	}
	if counter == nil {
		counter = PDFInspector{}
	}
	return &PDFRasterizer{
		cfg:     cfg,
		runner:  runner,
		counter: counter,
		log:     log.With("component", "rasterizer"),
	}
}

// Rasterize renders every page to PNG and returns the images in ascending
// page order. The scratch directory is removed on every return path.
func (r *PDFRasterizer) Rasterize(ctx context.Context, data []byte) ([][]byte, error) {
	start := time.Now()

	// declared stays 0 when neither reader understands the file; the
	// renderer has the final say.
	declared, err := r.counter.PageCount(data)
	if err != nil {
		r.log.Warn("pdf.inspect.failed", "error", err)
		declared = 0
	}
	if err := r.checkPageCap(declared); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(r.cfg.TempDir, "pdf-convert-*")
	if err != nil {
		return nil, apperr.Internal("failed to allocate scratch space", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.log.Warn("pdf.tempdir.cleanup_failed", "dir", dir, "error", err)
		}
	}()

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, apperr.Internal("failed to stage PDF", err)
	}

	_, stderr, err := r.runner.Run(ctx, r.cfg.Binary,
		"-png", "-scale-to", strconv.Itoa(r.cfg.ScaleTo), input, filepath.Join(dir, "page"))
	if err != nil {
		return nil, apperr.FileProcessing("failed to convert PDF to images",
			fmt.Errorf("%s: %w: %s", r.cfg.Binary, err, truncate(string(stderr), 1<<10)))
	}
	if len(stderr) > 0 {
		r.log.Warn("pdf.rasterize.stderr", "stderr", truncate(string(stderr), 1<<10))
	}

	images, err := readPages(dir)
	if err != nil {
		return nil, apperr.FileProcessing("failed to read rendered pages", err)
	}
	if len(images) == 0 {
		return nil, apperr.FileProcessing("no images were generated from the PDF", nil)
	}
	if declared == 0 {
		if err := r.checkPageCap(len(images)); err != nil {
			return nil, err
		}
	} else if declared != len(images) {
		r.log.Warn("pdf.rasterize.page_mismatch", "declared", declared, "rendered", len(images))
	}

	r.log.Info("pdf.rasterize.ok",
		"pages", len(images),
		"input_bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return images, nil
}

func (r *PDFRasterizer) checkPageCap(pages int) error {
	if r.cfg.MaxPages > 0 && pages > r.cfg.MaxPages {
		return apperr.Validation(
			fmt.Sprintf("PDF has %d pages, the limit is %d", pages, r.cfg.MaxPages),
			map[string]any{"pageCount": pages, "maxPages": r.cfg.MaxPages},
		)
	}
	return nil
}

// readPages orders rendered files by the page number in their name.
// pdftocairo zero-pads to the width of the page count, so listing order
// is not reliable across renderers.
func readPages(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	type page struct {
		num  int
		path string
	}
	var pages []page
	for _, e := range entries {
		m := pageFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		pages = append(pages, page{num: n, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	images := make([][]byte, 0, len(pages))
	for _, p := range pages {
		data, err := os.ReadFile(p.path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p.path, err)
		}
		images = append(images, data)
	}
	return images, nil
}
