// Package extract turns uploaded resume and job description files into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	TypePDF   = "application/pdf"
	TypeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypePlain = "text/plain"
)

// ErrNoText is returned when a document parsed cleanly but held no text.
var ErrNoText = errors.New("no text found in document")

// ExtractionError reports a document that could not be parsed.
type ExtractionError struct {
	ContentType string
	Err         error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.ContentType, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

var extensionTypes = map[string]string{
	".pdf":  TypePDF,
	".docx": TypeDOCX,
	".txt":  TypePlain,
	".md":   TypePlain,
	".text": TypePlain,
}

// Supported reports whether a file name has an extension Text can handle.
func Supported(name string) bool {
	_, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ContentType keeps the declared type unless it is missing or generic, in which
// case the file extension decides.
func ContentType(name, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") {
		return declared
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	if declared == "" {
		return TypePlain
	}
	return declared
}

// Text extracts the text of data according to contentType.
func Text(data []byte, contentType string) (string, error) {
	ct := strings.ToLower(contentType)
	var (
		text string
		err  error
	)
	switch {
	case strings.Contains(ct, "pdf"):
		text, err = pdfText(data)
	case strings.Contains(ct, "word"), strings.Contains(ct, "docx"), strings.Contains(ct, "officedocument"):
		text, err = docxText(data)
	default:
		text = strings.ToValidUTF8(string(data), "")
	}
	if err != nil {
		return "", &ExtractionError{ContentType: contentType, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

func pdfText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(out), ""), nil
}

func docxText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var doc *zip.File
	for _, f := range r.File {
		if strings.EqualFold(f.Name, "word/document.xml") {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("word/document.xml not found")
	}
	rc, err := doc.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return docxXMLText(rc)
}

// docxXMLText keeps text runs, tabs and breaks, and ends every paragraph and
// table row with a newline.
func docxXMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var buf strings.Builder
	lastNewline := true
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t", "instrText":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return "", err
				}
				buf.WriteString(s)
				lastNewline = false
			case "tab":
				buf.WriteByte('\t')
				lastNewline = false
			case "br", "cr":
				buf.WriteByte('\n')
				lastNewline = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "tr":
				if !lastNewline {
					buf.WriteByte('\n')
					lastNewline = true
				}
			case "tc":
				if !lastNewline {
					buf.WriteByte('\t')
				}
			}
		}
	}
	return buf.String(), nil
}
