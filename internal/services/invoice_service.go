package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"cashboxes/internal/core"
	"cashboxes/internal/files"
	"cashboxes/internal/ports"
)

// Form field names reported in validation errors.
const (
	FieldDescription = "description"
	FieldDate        = "date"
	FieldAmount      = "amount"
	FieldFile        = "file"
)

type (
	// Upload is a document received with a submission.
	Upload struct {
		Name    string
		Size    int64
		Content io.Reader
	}

	// SubmitInvoice is the raw form input of an invoice submission.
	SubmitInvoice struct {
		CashBox     string
		User        core.User
		Description string
		Date        string
		Amount      string
		File        *Upload
	}

	// DocumentStore stores invoice documents under generated names.
	DocumentStore interface {
		Save(ctx context.Context, originalName string, r io.Reader) (string, error)
		Remove(name string) error
	}

	// InvoicePublisher announces stored invoices to downstream consumers.
	InvoicePublisher interface {
		PublishInvoiceSubmitted(ctx context.Context, id int64) error
	}
)

// InvoiceService validates and stores reimbursement claims.
type InvoiceService struct {
	store     ports.Store
	docs      DocumentStore
	publisher InvoicePublisher
	ledger    *Ledger
	now       func() time.Time
	maxUpload int64
}

type InvoiceOption func(*InvoiceService)

// WithPublisher publishes invoice.submitted after each stored invoice.
func WithPublisher(p InvoicePublisher) InvoiceOption {
	return func(s *InvoiceService) { s.publisher = p }
}

// WithLedger invalidates cached balances of the ledger after each submission.
func WithLedger(l *Ledger) InvoiceOption {
	return func(s *InvoiceService) { s.ledger = l }
}

func WithClock(now func() time.Time) InvoiceOption {
	return func(s *InvoiceService) { s.now = now }
}

// WithMaxUpload rejects documents larger than n bytes. Zero disables the check.
func WithMaxUpload(n int64) InvoiceOption {
	return func(s *InvoiceService) { s.maxUpload = n }
}

func NewInvoiceService(store ports.Store, docs DocumentStore, opts ...InvoiceOption) *InvoiceService {
	s := &InvoiceService{store: store, docs: docs, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current date of the service clock.
func (s *InvoiceService) Today() core.Date {
	return core.DateOf(s.now())
}

// Submit validates in, stores its document and persists the invoice.
// Validation problems are returned as *core.ValidationError before anything is
// written; an unknown cash box yields core.ErrNotFound.
func (s *InvoiceService) Submit(ctx context.Context, in SubmitInvoice) (core.Transaction, error) {
	tx, err := s.validate(in)
	if err != nil {
		return core.Transaction{}, err
	}

	box, err := s.store.GetCashBoxByName(ctx, in.CashBox)
	if err != nil {
		return core.Transaction{}, err
	}
	if in.User.ID == 0 || !in.User.Active {
		return core.Transaction{}, core.ErrInactiveUser
	}
	tx.CashBoxID = box.ID
	tx.UserID = in.User.ID

	name, err := s.docs.Save(ctx, in.File.Name, in.File.Content)
	if err != nil {
		if errors.Is(err, core.ErrUnsupportedFile) {
			verr := core.NewValidationError()
			verr.Add(FieldFile, "unsupported file type")
			return core.Transaction{}, verr
		}
		return core.Transaction{}, fmt.Errorf("store invoice document: %w", err)
	}
	tx.File = name

	saved, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		if rmErr := s.docs.Remove(name); rmErr != nil {
			slog.ErrorContext(ctx, "Failed to remove orphaned invoice document",
				"file", name, "error", rmErr)
		}
		return core.Transaction{}, fmt.Errorf("save invoice: %w", err)
	}

	if s.ledger != nil {
		s.ledger.Invalidate(box.ID)
	}

	slog.InfoContext(ctx, "Invoice submitted",
		"id", saved.ID,
		"cash_box", box.Name,
		"user", in.User.Username,
		"amount", saved.Amount.String(),
		"date", saved.Date.String(),
		"file", name)

	if s.publisher != nil {
		if err := s.publisher.PublishInvoiceSubmitted(ctx, saved.ID); err != nil {
			// The invoice is stored; the export worker backfills unpublished rows.
			slog.ErrorContext(ctx, "Failed to publish invoice submitted message",
				"id", saved.ID, "error", err)
		}
	}

	return saved, nil
}

func (s *InvoiceService) validate(in SubmitInvoice) (core.Transaction, error) {
	verr := core.NewValidationError()
	tx := core.Transaction{Kind: core.KindInvoice}

	tx.Description = strings.TrimSpace(in.Description)
	switch {
	case tx.Description == "":
		verr.Add(FieldDescription, "This field is required.")
	case utf8.RuneCountInString(tx.Description) > core.MaxDescriptionLength:
		verr.Add(FieldDescription, fmt.Sprintf("Ensure this value has at most %d characters.", core.MaxDescriptionLength))
	}

	if strings.TrimSpace(in.Date) == "" {
		tx.Date = s.Today()
	} else if d, err := core.ParseDate(in.Date); err != nil {
		verr.Add(FieldDate, "Enter a valid date.")
	} else {
		tx.Date = d
	}

	if strings.TrimSpace(in.Amount) == "" {
		verr.Add(FieldAmount, "This field is required.")
	} else if amount, err := core.ParseAmount(in.Amount); err != nil {
		verr.Add(FieldAmount, "Enter a positive amount with at most two decimal places.")
	} else {
		tx.Amount = -amount
	}

	switch {
	case in.File == nil || in.File.Content == nil || strings.TrimSpace(in.File.Name) == "":
		verr.Add(FieldFile, "This field is required.")
	case s.maxUpload > 0 && in.File.Size > s.maxUpload:
		verr.Add(FieldFile, "The file is too large.")
	default:
		if _, ok := files.Extension(in.File.Name); !ok {
			verr.Add(FieldFile, "Upload a pdf or image file.")
		}
	}

	if err := verr.OrNil(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}
