package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
)

type fakeCounter struct {
	pages int
	err   error
}

func (f fakeCounter) PageCount([]byte) (int, error) { return f.pages, f.err }

// stubRunner writes the named files next to the output prefix, the way
// pdftocairo would, and remembers where it wrote them.
type stubRunner struct {
	files  map[string]string
	err    error
	stderr string
	dir    string
	args   []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.args = append([]string{name}, args...)
	prefix := args[len(args)-1]
	s.dir = filepath.Dir(prefix)
	for n, content := range s.files {
		if err := os.WriteFile(filepath.Join(s.dir, n), []byte(content), 0o600); err != nil {
			return nil, nil, err
		}
	}
	return nil, []byte(s.stderr), s.err
}

func newTestRasterizer(t *testing.T, runner Runner, counter PageCounter, maxPages int) (*PDFRasterizer, string) {
	t.Helper()
	base := t.TempDir()
	r := NewPDFRasterizer(RasterizerConfig{TempDir: base, MaxPages: maxPages}, runner, counter, nil)
	return r, base
}

func assertEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch space not released: %d entries left in %s", len(entries), dir)
	}
}

func TestRasterizeOrdersByPageNumber(t *testing.T) {
	runner := &stubRunner{files: map[string]string{
		"page-10.png": "p10",
		"page-2.png":  "p2",
		"page-1.png":  "p1",
		"page-9.png":  "p9",
		"input.txt":   "ignored",
	}}
	r, base := newTestRasterizer(t, runner, fakeCounter{pages: 4}, 0)

	images, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	want := []string{"p1", "p2", "p9", "p10"}
	if len(images) != len(want) {
		t.Fatalf("pages = %d, want %d", len(images), len(want))
	}
	for i, w := range want {
		if string(images[i]) != w {
			t.Errorf("page %d = %q, want %q", i+1, images[i], w)
		}
	}
	if runner.args[0] != "pdftocairo" || runner.args[1] != "-png" || runner.args[2] != "-scale-to" || runner.args[3] != "1024" {
		t.Errorf("unexpected command %v", runner.args)
	}
	assertEmpty(t, base)
}

func TestRasterizeZeroPages(t *testing.T) {
	runner := &stubRunner{}
	r, base := newTestRasterizer(t, runner, fakeCounter{pages: 1}, 0)

	_, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"))
	if !apperr.Is(err, apperr.CodeFileProcessing) {
		t.Fatalf("err = %v, want FILE_PROCESSING_ERROR", err)
	}
	assertEmpty(t, base)
}

func TestRasterizeToolError(t *testing.T) {
	runner := &stubRunner{
		files:  map[string]string{"page-1.png": "partial"},
		err:    errors.New("exit status 1"),
		stderr: "Syntax Error: Couldn't read xref table",
	}
	r, base := newTestRasterizer(t, runner, fakeCounter{pages: 1}, 0)

	_, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"))
	if !apperr.Is(err, apperr.CodeFileProcessing) {
		t.Fatalf("err = %v, want FILE_PROCESSING_ERROR", err)
	}
	assertEmpty(t, base)
}

func TestRasterizeRendersWhenPageCountUnknown(t *testing.T) {
	runner := &stubRunner{files: map[string]string{"page-1.png": "p1", "page-2.png": "p2"}}
	r, base := newTestRasterizer(t, runner, fakeCounter{err: errors.New("no header")}, 0)

	images, err := r.Rasterize(context.Background(), []byte("%PDF-1.7 odd"))
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if len(images) != 2 || string(images[0]) != "p1" {
		t.Errorf("images = %q", images)
	}
	assertEmpty(t, base)
}

func TestRasterizeUnreadablePDFFailsInRenderer(t *testing.T) {
	runner := &stubRunner{err: errors.New("exit status 1"), stderr: "May not be a PDF file"}
	r, base := newTestRasterizer(t, runner, fakeCounter{err: errors.New("no header")}, 0)

	_, err := r.Rasterize(context.Background(), []byte("not a pdf"))
	if !apperr.Is(err, apperr.CodeFileProcessing) {
		t.Fatalf("err = %v, want FILE_PROCESSING_ERROR", err)
	}
	if runner.args == nil {
		t.Fatal("renderer should still be tried when the page count is unknown")
	}
	assertEmpty(t, base)
}

func TestRasterizePageCapAppliedAfterRenderWhenCountUnknown(t *testing.T) {
	runner := &stubRunner{files: map[string]string{"page-1.png": "p1", "page-2.png": "p2", "page-3.png": "p3"}}
	r, base := newTestRasterizer(t, runner, fakeCounter{err: errors.New("no header")}, 2)

	_, err := r.Rasterize(context.Background(), []byte("%PDF-1.7 odd"))
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("err = %v, want VALIDATION_ERROR", err)
	}
	assertEmpty(t, base)
}

func TestRasterizePageCap(t *testing.T) {
	runner := &stubRunner{}
	r, _ := newTestRasterizer(t, runner, fakeCounter{pages: 12}, 10)

	_, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"))
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("err = %v, want VALIDATION_ERROR", err)
	}
	if runner.args != nil {
		t.Fatal("renderer should not run when the page cap is exceeded")
	}
}

func TestReadPagesManyPages(t *testing.T) {
	dir := t.TempDir()
	for i := 120; i >= 1; i-- {
		name := fmt.Sprintf("page-%03d.png", i)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(fmt.Sprint(i)), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	images, err := readPages(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i, img := range images {
		if string(img) != fmt.Sprint(i+1) {
			t.Fatalf("position %d holds page %s", i, img)
		}
	}
}
