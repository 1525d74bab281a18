package document

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/docsearch/internal/models"
	"github.com/nikhilbhutani/docsearch/internal/multimodal"
)

// PageExtractor turns one page image into structured content.
type PageExtractor interface {
	ExtractPage(ctx context.Context, page multimodal.PageImage, promptOverride string) (*models.PageExtraction, error)
}

// Rasterizer renders a PDF into page images in ascending page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte) ([][]byte, error)
}

// PageProgress is called after each page finishes.
type PageProgress func(done, total int)

type Extractor struct {
	text        *TextExtractor
	raster      Rasterizer
	vision      PageExtractor
	concurrency int
	log         *slog.Logger
}

func NewExtractor(text *TextExtractor, raster Rasterizer, vision PageExtractor, concurrency int, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	if text == nil {
		text = NewTextExtractor(log)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Extractor{
		text:        text,
		raster:      raster,
		vision:      vision,
		concurrency: concurrency,
		log:         log.With("component", "extractor"),
	}
}

// Extract routes the file through its lane and returns the merged result.
// Any page failure fails the whole file.
func (e *Extractor) Extract(ctx context.Context, file models.UploadedFile, prompt string, progress PageProgress) (*models.ExtractionResult, error) {
	start := time.Now()
	lane := Classify(file.Name, file.MimeType)

	if lane == models.LaneText {
		result, err := e.text.Extract(file.Data, file.Name)
		if err != nil {
			return nil, err
		}
		e.log.Info("extract.text.ok",
			"filename", file.Name,
			"text_length", len(result.RawText),
			"cells", len(result.Tables),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return result, nil
	}

	var images [][]byte
	mimeType := "image/png"
	if lane == models.LanePDF {
		var err error
		images, err = e.raster.Rasterize(ctx, file.Data)
		if err != nil {
			return nil, err
		}
	} else {
		images = [][]byte{file.Data}
		mimeType = imageMimeType(file.Name, file.MimeType)
	}

	pages, err := e.extractPages(ctx, images, mimeType, prompt, progress)
	if err != nil {
		return nil, err
	}

	result := Merge(pages)
	e.log.Info("extract.vision.ok",
		"filename", file.Name,
		"lane", string(lane),
		"pages", result.PageCount,
		"cells", len(result.Tables),
		"text_length", len(result.RawText),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &result, nil
}

func (e *Extractor) extractPages(ctx context.Context, images [][]byte, mimeType, prompt string, progress PageProgress) ([]models.PageExtraction, error) {
	n := len(images)
	if progress == nil {
		progress = func(int, int) {}
	}

	if e.concurrency == 1 || n == 1 {
		pages := make([]models.PageExtraction, 0, n)
		for i, img := range images {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			page, err := e.vision.ExtractPage(ctx, multimodal.PageImage{Data: img, MimeType: mimeType, Index: i + 1, Count: n}, prompt)
			if err != nil {
				return nil, fmt.Errorf("page %d of %d: %w", i+1, n, err)
			}
			pages = append(pages, *page)
			progress(i+1, n)
		}
		return pages, nil
	}

	// Results land in their page slot so merge order never depends on
	// completion order.
	pages := make([]models.PageExtraction, n)
	var done atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, img := range images {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			page, err := e.vision.ExtractPage(gctx, multimodal.PageImage{Data: img, MimeType: mimeType, Index: i + 1, Count: n}, prompt)
			if err != nil {
				return fmt.Errorf("page %d of %d: %w", i+1, n, err)
			}
			pages[i] = *page
			progress(int(done.Add(1)), n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}
