// Package http serves the cash box pages.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"errors"
	"net/http"

	"cashboxes/internal/services"
)

// multipartMemory is kept in memory before parts spill to temporary files.
const multipartMemory = 8 << 20

// formOverhead is the room left for the text fields of a submission on top of
// the document size limit.
const formOverhead = 1 << 20

// ParseInvoiceForm reads a multipart invoice submission. The body is capped at
// maxUpload plus a small overhead so the service can report oversized
// documents as a field error; anything larger fails with *http.MaxBytesError.
// The returned cleanup releases the uploaded file and temporary storage.
func ParseInvoiceForm(w http.ResponseWriter, r *http.Request, maxUpload int64) (services.SubmitInvoice, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return services.SubmitInvoice{}, noop, err
	}

	in := services.SubmitInvoice{
		Description: sanitizeInput(r.FormValue(services.FieldDescription)),
		Date:        sanitizeInput(r.FormValue(services.FieldDate)),
		Amount:      sanitizeInput(r.FormValue(services.FieldAmount)),
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile(services.FieldFile)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, cleanup, nil
	case err != nil:
		cleanup()
		return services.SubmitInvoice{}, noop, err
	}

	in.File = &services.Upload{Name: header.Filename, Size: header.Size, Content: file}
	return in, func() {
		_ = file.Close()
		cleanup()
	}, nil
}
