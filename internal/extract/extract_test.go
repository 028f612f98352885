package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func buildDOCX(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>
    <w:p><w:r><w:t>Senior Go</w:t></w:r><w:r><w:t xml:space="preserve"> Engineer</w:t></w:r></w:p>
    <w:p><w:r><w:t>Skills</w:t><w:tab/><w:t>Kubernetes</w:t><w:br/><w:t>Postgres</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestText_DOCX(t *testing.T) {
	data := buildDOCX(t, map[string]string{"word/document.xml": documentXML})

	got, err := Text(data, TypeDOCX)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	want := "Jane Doe\nSenior Go Engineer\nSkills\tKubernetes\nPostgres\n"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestText_DOCXErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not a zip", []byte("plain bytes")},
		{"missing document part", nil},
		{"broken xml", nil},
	}
	tests[1].data = buildDOCX(t, map[string]string{"word/styles.xml": "<styles/>"})
	tests[2].data = buildDOCX(t, map[string]string{"word/document.xml": "<w:document><w:t>open"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Text(tt.data, TypeDOCX)
			var ee *ExtractionError
			if !errors.As(err, &ee) {
				t.Fatalf("Expected ExtractionError, got %v", err)
			}
			if ee.ContentType != TypeDOCX {
				t.Errorf("Expected content type %s, got %s", TypeDOCX, ee.ContentType)
			}
			if ee.Unwrap() == nil {
				t.Error("Expected wrapped cause")
			}
		})
	}
}

func TestText_PDFInvalid(t *testing.T) {
	_, err := Text([]byte("this is not a pdf"), TypePDF)
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("Expected ExtractionError, got %v", err)
	}
}

func TestText_Plain(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		contentType string
		want        string
		wantErr     error
	}{
		{"plain text", []byte("Go developer, 5 years"), TypePlain, "Go developer, 5 years", nil},
		{"unknown type treated as text", []byte("hello"), "application/json", "hello", nil},
		{"invalid utf8 dropped", []byte("caf\xffe"), TypePlain, "cafe", nil},
		{"blank", []byte("  \n\t "), TypePlain, "", ErrNoText},
		{"empty", nil, "", "", ErrNoText},
		{"empty docx", nil, TypeDOCX, "", ErrNoText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(tt.data, tt.contentType)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name, file, declared, want string
	}{
		{"declared kept", "cv.bin", "application/pdf", TypePDF},
		{"octet stream sniffed", "cv.PDF", "application/octet-stream", TypePDF},
		{"empty sniffed docx", "cv.docx", "", TypeDOCX},
		{"empty unknown ext", "cv", "", TypePlain},
		{"octet stream unknown ext", "cv.bin", "application/octet-stream", "application/octet-stream"},
		{"markdown", "notes.md", "", TypePlain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentType(tt.file, tt.declared); got != tt.want {
				t.Errorf("ContentType(%q, %q) = %q, want %q", tt.file, tt.declared, got, tt.want)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{
		"a.pdf": true, "b.DOCX": true, "c.txt": true, "d.md": true,
		"e.doc": false, "f.png": false, "Makefile": false,
	} {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v, want %v", name, got, want)
		}
	}
}
