package textextract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractCSV(t *testing.T) {
	data := []byte("Item, Qty ,Price\n\nWidget,2,9.99\n   \nGadget,5\n")
	got, err := New().Extract(data, "stock.CSV")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Content != string(data) {
		t.Errorf("Content should be verbatim")
	}
	wantHeaders := []string{"Item", "Qty", "Price"}
	if strings.Join(got.Headers, "|") != strings.Join(wantHeaders, "|") {
		t.Errorf("Headers = %v, want %v", got.Headers, wantHeaders)
	}
	if len(got.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(got.Rows))
	}
	if len(got.Rows[1]) != 2 {
		t.Errorf("ragged row should keep its own width, got %v", got.Rows[1])
	}
}

func TestExtractCSVHeaderOnly(t *testing.T) {
	got, err := New().Extract([]byte("a,b,c\n"), "x.csv")
	if err != nil {
		t.Fatal(err)
	}
	if got.Headers != nil || got.Rows != nil {
		t.Errorf("header-only CSV should yield no table, got %v / %v", got.Headers, got.Rows)
	}
}

func TestExtractTXTInvalidUTF8(t *testing.T) {
	_, err := New().Extract([]byte{0xff, 0xfe, 0xfd}, "notes.txt")
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("err = %v, want ErrInvalidEncoding", err)
	}
}

func TestExtractTXTVerbatim(t *testing.T) {
	in := "  line one\nline two  \n"
	got, err := New().Extract([]byte(in), "notes.md")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != in {
		t.Errorf("Content = %q, want %q", got.Content, in)
	}
}

func TestExtractDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>Hello</w:t></w:r></w:p><w:p><w:r><w:t>World</w:t></w:r></w:p></w:body></w:document>`))
	zw.Close()

	got, err := New().Extract(buf.Bytes(), "letter.docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Content != "Hello World" {
		t.Errorf("Content = %q", got.Content)
	}
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Item")
	f.SetCellValue("Sheet1", "B1", "Qty")
	f.SetCellValue("Sheet1", "A2", "Bolt")
	f.SetCellValue("Sheet1", "B2", 12)
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	got, err := New().Extract(buf.Bytes(), "parts.xlsx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.Join(got.Headers, ",") != "Item,Qty" {
		t.Errorf("Headers = %v", got.Headers)
	}
	if len(got.Rows) != 1 || strings.Join(got.Rows[0], ",") != "Bolt,12" {
		t.Errorf("Rows = %v", got.Rows)
	}
	if !strings.Contains(got.Content, "Bolt\t12") {
		t.Errorf("Content = %q", got.Content)
	}
	if got.Format != "xlsx" || got.Sheets != 1 {
		t.Errorf("Format = %q, Sheets = %d", got.Format, got.Sheets)
	}
}

func TestExtractHTML(t *testing.T) {
	got, err := New().Extract([]byte(`<h1>Title</h1><p>Hello <b>world</b></p>`), "page.html")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got.Content, "# Title") || !strings.Contains(got.Content, "**world**") {
		t.Errorf("Content = %q", got.Content)
	}
}

func TestExtractReportsFormat(t *testing.T) {
	tests := []struct {
		filename string
		data     string
		want     string
	}{
		{"a.csv", "x,y\n1,2\n", "csv"},
		{"a.txt", "hello", "txt"},
		{"a.md", "# hi", "txt"},
		{"a.htm", "<p>hi</p>", "html"},
	}
	for _, tt := range tests {
		got, err := New().Extract([]byte(tt.data), tt.filename)
		if err != nil {
			t.Fatalf("%s: %v", tt.filename, err)
		}
		if got.Format != tt.want {
			t.Errorf("%s: Format = %q, want %q", tt.filename, got.Format, tt.want)
		}
	}
}
