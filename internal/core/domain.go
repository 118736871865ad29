package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	KindCashFlow TransactionKind = "cash_flow"
	KindInvoice  TransactionKind = "invoice"
)

// MaxDescriptionLength bounds invoice descriptions and cash box names, in characters.
const MaxDescriptionLength = 500

type (
	// TransactionKind discriminates the stored transaction variants.
	TransactionKind string

	Date struct {
		time.Time
	}

	// CashBox is a pooled fund shared by several users.
	CashBox struct {
		ID            int64
		Name          string
		InitialAmount Euro
	}

	// User is the identity a transaction is attributed to.
	User struct {
		ID           int64
		Username     string
		FullName     string
		Active       bool
		PasswordHash string
	}

	// Transaction is a dated, user-attributed monetary event against a cash box.
	// Description and File are only set for invoices.
	Transaction struct {
		ID          int64
		Kind        TransactionKind
		UserID      int64
		CashBoxID   int64
		Date        Date
		Amount      Euro
		Description string
		File        string
		ExportedAt  time.Time
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrMissingFile      = errors.New("missing file")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrInactiveUser     = errors.New("user is not active")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// OnOrBefore reports whether d falls on the cutoff or earlier. A nil cutoff
// includes every date.
func (d Date) OnOrBefore(cutoff *Date) bool {
	return cutoff == nil || !d.After(cutoff.Time)
}

func (k TransactionKind) IsValid() bool {
	switch k {
	case KindCashFlow, KindInvoice:
		return true
	default:
		return false
	}
}

func (k TransactionKind) String() string {
	return string(k)
}

func (b CashBox) String() string {
	return b.Name
}

func (b CashBox) Validate() error {
	name := strings.TrimSpace(b.Name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxDescriptionLength || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid cash box name %q", b.Name)
	}
	return nil
}

// DisplayName returns the full name, falling back to the username.
func (u User) DisplayName() string {
	if n := strings.TrimSpace(u.FullName); n != "" {
		return n
	}
	return u.Username
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return ErrEmptyName
	}
	if strings.ContainsAny(u.Username, "/\\ ") {
		return fmt.Errorf("invalid username %q", u.Username)
	}
	return nil
}

// IsInvoice reports whether the transaction is a reimbursement claim.
func (t Transaction) IsInvoice() bool {
	return t.Kind == KindInvoice
}

func (t Transaction) Validate() error {
	if !t.Kind.IsValid() {
		return ErrInvalidKind
	}
	if t.UserID <= 0 || t.CashBoxID <= 0 {
		return errors.New("transaction needs a user and a cash box")
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount == 0 {
		return ErrInvalidAmount
	}
	if t.Kind == KindInvoice {
		if strings.TrimSpace(t.Description) == "" {
			return ErrEmptyDescription
		}
		if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
			return fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
		}
	}
	return nil
}
