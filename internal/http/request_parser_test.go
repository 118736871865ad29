package http

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func multipartRequest(t *testing.T, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/box/Kitchen/new", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestParseInvoiceForm(t *testing.T) {
	req := multipartRequest(t, map[string]string{
		"description": "  Groceries\x00 ",
		"date":        "2024-01-05",
		"amount":      "12.50",
	}, "receipt.pdf", []byte("%PDF-1.4"))

	in, cleanup, err := ParseInvoiceForm(httptest.NewRecorder(), req, 1<<20)
	if err != nil {
		t.Fatalf("ParseInvoiceForm: %v", err)
	}
	defer cleanup()

	if in.Description != "Groceries" {
		t.Errorf("Description = %q", in.Description)
	}
	if in.Date != "2024-01-05" || in.Amount != "12.50" {
		t.Errorf("unexpected fields %+v", in)
	}
	if in.File == nil || in.File.Name != "receipt.pdf" || in.File.Size != 8 {
		t.Fatalf("unexpected file %+v", in.File)
	}
	data, err := io.ReadAll(in.File.Content)
	if err != nil || string(data) != "%PDF-1.4" {
		t.Errorf("content = %q, err = %v", data, err)
	}
}

func TestParseInvoiceForm_MissingFile(t *testing.T) {
	req := multipartRequest(t, map[string]string{"description": "x"}, "", nil)

	in, cleanup, err := ParseInvoiceForm(httptest.NewRecorder(), req, 1<<20)
	if err != nil {
		t.Fatalf("ParseInvoiceForm: %v", err)
	}
	defer cleanup()
	if in.File != nil {
		t.Errorf("expected no file, got %+v", in.File)
	}
}

func TestParseInvoiceForm_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/box/Kitchen/new", strings.NewReader("description=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if _, _, err := ParseInvoiceForm(httptest.NewRecorder(), req, 1<<20); err == nil {
		t.Fatal("expected error for non-multipart body")
	}
}

func TestParseInvoiceForm_BodyTooLarge(t *testing.T) {
	req := multipartRequest(t, nil, "big.pdf", bytes.Repeat([]byte("a"), formOverhead+2048))

	_, _, err := ParseInvoiceForm(httptest.NewRecorder(), req, 1024)
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected MaxBytesError, got %v", err)
	}
}

func TestSearchParam(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"", ""},
		{"?search=%20Coffee%20", "Coffee"},
		{"?search=a%01b", "ab"},
		{"?search=" + strings.Repeat("x", 150), strings.Repeat("x", maxSearchLength)},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/box/"+tt.query, nil)
		if got := searchParam(req); got != tt.want {
			t.Errorf("searchParam(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput(" a\tb\x07c "); got != "a\tbc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
