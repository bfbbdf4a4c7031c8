package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"

	"aicv-backend/internal/shared/util"
)

const mimePDF = "application/pdf"

var ErrUnsupportedType = errors.New("only images and PDF files are accepted")

// detectContentType sniffs the payload and falls back to the declared type
// only when sniffing is inconclusive.
func detectContentType(data []byte, declared string) string {
	sniffed := normalizeMime(http.DetectContentType(data))
	if sniffed != "application/octet-stream" && sniffed != "text/plain" {
		return sniffed
	}
	if d := normalizeMime(declared); d != "" {
		return d
	}
	return sniffed
}

func normalizeMime(v string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(v, ";")[0]))
}

func allowed(contentType string) bool {
	return contentType == mimePDF || strings.HasPrefix(contentType, "image/")
}

// extensionFor prefers the client's extension and otherwise derives one from
// the content type.
func extensionFor(fileName, contentType string) string {
	if ext := util.FileExtension(fileName); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}

// pdfPageCount parses the document and reports its page count. The parser
// panics on some malformed inputs, so panics become errors.
func pdfPageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	n = reader.NumPage()
	if n < 1 {
		return 0, errors.New("parse pdf: no pages")
	}
	return n, nil
}
