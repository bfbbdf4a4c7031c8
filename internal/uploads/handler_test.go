package uploads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"aicv-backend/internal/shared/storage/object/local"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// minimalPDF builds a well-formed PDF with the given number of empty pages.
func minimalPDF(pages int) []byte {
	var buf bytes.Buffer
	offsets := []int{}
	write := func(format string, args ...any) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, format, args...)
	}

	buf.WriteString("%PDF-1.4\n")
	write("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	write("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, pages)
	for i := 0; i < pages; i++ {
		write("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n", 3+i)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	h := NewHandler(local.New(dir, "http://files.test/files"))
	h.newID = func() string { return "fixed" }
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	return router, dir
}

func multipartBody(t *testing.T, field, name, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func upload(t *testing.T, router *gin.Engine, field, name, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, name, contentType, data)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pic", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestUploadImage(t *testing.T) {
	router, dir := newTestRouter(t)

	resp := upload(t, router, "image", "photo.PNG", "image/png", pngHeader)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var got struct {
		Key       string `json:"key"`
		URL       string `json:"url"`
		MimeType  string `json:"mimeType"`
		Size      int64  `json:"size"`
		PageCount int    `json:"pageCount"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Key != "uploads/fixed.png" || got.URL != "http://files.test/files/uploads/fixed.png" {
		t.Fatalf("unexpected object %+v", got)
	}
	if got.MimeType != "image/png" || got.Size != int64(len(pngHeader)) || got.PageCount != 0 {
		t.Fatalf("unexpected metadata %+v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "uploads", "fixed.png")); err != nil {
		t.Fatalf("expected stored file: %v", err)
	}
}

func TestUploadPDFReportsPages(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := upload(t, router, "image", "cv", "application/octet-stream", minimalPDF(2))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var got struct {
		Key       string `json:"key"`
		MimeType  string `json:"mimeType"`
		PageCount int    `json:"pageCount"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Key != "uploads/fixed.pdf" || got.MimeType != "application/pdf" || got.PageCount != 2 {
		t.Fatalf("unexpected response %+v", got)
	}
}

func TestUploadRejects(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name  string
		field string
		file  string
		ct    string
		data  []byte
		want  int
	}{
		{name: "wrong field", field: "file", file: "a.png", ct: "image/png", data: pngHeader, want: http.StatusBadRequest},
		{name: "text file", field: "image", file: "a.txt", ct: "text/plain", data: []byte("hello"), want: http.StatusUnsupportedMediaType},
		{name: "html disguised as png", field: "image", file: "a.png", ct: "image/png", data: []byte("<html><body>x</body></html>"), want: http.StatusUnsupportedMediaType},
		{name: "broken pdf", field: "image", file: "a.pdf", ct: "application/pdf", data: []byte("%PDF-1.4\ngarbage"), want: http.StatusBadRequest},
		{name: "too large", field: "image", file: "a.png", ct: "image/png", data: append(append([]byte{}, pngHeader...), make([]byte, maxUploadBytes)...), want: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			resp := upload(t, router, tt.field, tt.file, tt.ct, tt.data)
			if resp.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, resp.Code, resp.Body.String())
			}
		})
	}
}
