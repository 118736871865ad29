package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"cashboxes/internal/core"
	"cashboxes/internal/ports"
)

var _ ports.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

// dsn enables foreign keys so cash box deletion cascades to transactions.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateCashBox implements ports.CashBoxStore
func (r *SQLiteRepository) CreateCashBox(ctx context.Context, box core.CashBox) (core.CashBox, error) {
	if err := box.Validate(); err != nil {
		return core.CashBox{}, err
	}
	box.Name = strings.TrimSpace(box.Name)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO cash_boxes (name, initial_amount) VALUES (?, ?)`,
		box.Name, box.InitialAmount.Cents())
	if err != nil {
		return core.CashBox{}, fmt.Errorf("create cash box %q: %w", box.Name, mapError(err))
	}
	if box.ID, err = res.LastInsertId(); err != nil {
		return core.CashBox{}, fmt.Errorf("cash box id: %w", err)
	}

	slog.InfoContext(ctx, "Cash box saved to SQLite",
		"id", box.ID,
		"cash_box", box.Name,
		"initial_amount_cents", box.InitialAmount.Cents())

	return box, nil
}

func (r *SQLiteRepository) GetCashBox(ctx context.Context, id int64) (core.CashBox, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, initial_amount FROM cash_boxes WHERE id = ?`, id)
	box, err := scanCashBox(row)
	if err != nil {
		return core.CashBox{}, fmt.Errorf("get cash box %d: %w", id, err)
	}
	return box, nil
}

func (r *SQLiteRepository) GetCashBoxByName(ctx context.Context, name string) (core.CashBox, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, initial_amount FROM cash_boxes WHERE name = ?`, name)
	box, err := scanCashBox(row)
	if err != nil {
		return core.CashBox{}, fmt.Errorf("get cash box %q: %w", name, err)
	}
	return box, nil
}

func (r *SQLiteRepository) ListCashBoxes(ctx context.Context, search string) ([]core.CashBox, error) {
	query := `SELECT id, name, initial_amount FROM cash_boxes`
	var args []any
	if s := strings.TrimSpace(search); s != "" {
		query += ` WHERE LOWER(name) LIKE ? ESCAPE '\'`
		args = append(args, likePattern(s))
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cash boxes: %w", err)
	}
	defer rows.Close()

	var boxes []core.CashBox
	for rows.Next() {
		box, err := scanCashBox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cash box: %w", err)
		}
		boxes = append(boxes, box)
	}
	return boxes, rows.Err()
}

// CreateTransaction implements ports.TransactionStore
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx,
		`INSERT INTO transactions (kind, user_id, cash_box_id, date, amount) VALUES (?, ?, ?, ?, ?)`,
		string(t.Kind), t.UserID, t.CashBoxID, t.Date.String(), t.Amount.Cents())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", mapError(err))
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}

	if t.Kind == core.KindInvoice {
		if _, err := sqlTx.ExecContext(ctx,
			`INSERT INTO invoices (transaction_id, description, file) VALUES (?, ?, ?)`,
			t.ID, t.Description, nullString(t.File)); err != nil {
			return core.Transaction{}, fmt.Errorf("insert invoice: %w", mapError(err))
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"kind", t.Kind,
		"cash_box_id", t.CashBoxID,
		"user_id", t.UserID,
		"amount_cents", t.Amount.Cents(),
		"date", t.Date.String())

	return t, nil
}

const selectTransactions = `SELECT t.id, t.kind, t.user_id, t.cash_box_id, t.date, t.amount,
       COALESCE(i.description, ''), COALESCE(i.file, ''), COALESCE(i.exported_at, '')
FROM transactions t
LEFT JOIN invoices i ON i.transaction_id = t.id`

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransactions+` WHERE t.id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f ports.TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.CashBoxID != 0 {
		where = append(where, "t.cash_box_id = ?")
		args = append(args, f.CashBoxID)
	}
	if f.UserID != 0 {
		where = append(where, "t.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Until != nil {
		// ISO dates compare correctly as text.
		where = append(where, "t.date <= ?")
		args = append(args, f.Until.String())
	}
	if f.Kind != "" {
		where = append(where, "t.kind = ?")
		args = append(args, string(f.Kind))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, `t.kind = 'invoice' AND LOWER(i.description) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(s))
	}

	query := selectTransactions
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.date, t.id"

	return r.queryTransactions(ctx, query, args...)
}

// ListUnexported implements ports.ExportTracker
func (r *SQLiteRepository) ListUnexported(ctx context.Context, limit int) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		selectTransactions+` WHERE t.kind = 'invoice' AND i.exported_at IS NULL ORDER BY t.id LIMIT ?`,
		limit)
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET exported_at = ? WHERE transaction_id = ?`,
		at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("mark invoice exported: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark invoice %d exported: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Invoice marked as exported", "id", id)
	return nil
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateUser implements ports.UserDirectory
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, full_name, password_hash, active) VALUES (?, ?, ?, ?)`,
		u.Username, u.FullName, u.PasswordHash, u.Active)
	if err != nil {
		return core.User{}, fmt.Errorf("create user %q: %w", u.Username, mapError(err))
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}
	return u, nil
}

const selectUsers = `SELECT id, username, full_name, password_hash, active FROM users`

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, selectUsers+` WHERE id = ?`, id))
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, selectUsers+` WHERE username = ?`, username))
	if err != nil {
		return core.User{}, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUsers+` ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCashBox(s scanner) (core.CashBox, error) {
	var (
		box     core.CashBox
		initial int64
	)
	if err := s.Scan(&box.ID, &box.Name, &initial); err != nil {
		return core.CashBox{}, mapError(err)
	}
	box.InitialAmount = core.Euro(initial)
	return box, nil
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                  core.Transaction
		kind, date, export string
		amount             int64
	)
	if err := s.Scan(&t.ID, &kind, &t.UserID, &t.CashBoxID, &date, &amount, &t.Description, &t.File, &export); err != nil {
		return core.Transaction{}, mapError(err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	t.Kind = core.TransactionKind(kind)
	t.Date = d
	t.Amount = core.Euro(amount)
	if export != "" {
		if at, err := time.Parse(time.RFC3339, export); err == nil {
			t.ExportedAt = at
		}
	}
	return t, nil
}

func scanUser(s scanner) (core.User, error) {
	var u core.User
	if err := s.Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &u.Active); err != nil {
		return core.User{}, mapError(err)
	}
	return u, nil
}

// mapError translates driver errors into core sentinel errors.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", core.ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", core.ErrNotFound, err)
		}
	}
	return err
}

func likePattern(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
