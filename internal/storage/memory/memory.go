package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"cashboxes/internal/core"
	"cashboxes/internal/ports"
)

var _ ports.Store = (*Store)(nil)

// Store keeps every entity in process memory. It backs tests and the
// DATA_BACKEND=memory mode.
type Store struct {
	mu    sync.Mutex
	boxes []core.CashBox
	users []core.User
	txs   []core.Transaction
}

func New() *Store {
	return &Store{}
}

// NewFromFiles seeds cash boxes and users from seed_cash_boxes.txt and
// seed_users.txt in base, one name per line. Missing files yield an empty store.
func NewFromFiles(base string) *Store {
	s := New()
	ctx := context.Background()
	for _, name := range readLines(filepath.Join(base, "seed_cash_boxes.txt")) {
		_, _ = s.CreateCashBox(ctx, core.CashBox{Name: name})
	}
	for _, name := range readLines(filepath.Join(base, "seed_users.txt")) {
		_, _ = s.CreateUser(ctx, core.User{Username: name, Active: true})
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateCashBox(_ context.Context, box core.CashBox) (core.CashBox, error) {
	if err := box.Validate(); err != nil {
		return core.CashBox{}, err
	}
	box.Name = strings.TrimSpace(box.Name)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.boxes {
		if b.Name == box.Name {
			return core.CashBox{}, fmt.Errorf("create cash box %q: %w", box.Name, core.ErrConflict)
		}
	}
	box.ID = int64(len(s.boxes) + 1)
	s.boxes = append(s.boxes, box)
	return box, nil
}

func (s *Store) GetCashBox(_ context.Context, id int64) (core.CashBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.boxes {
		if b.ID == id {
			return b, nil
		}
	}
	return core.CashBox{}, fmt.Errorf("get cash box %d: %w", id, core.ErrNotFound)
}

func (s *Store) GetCashBoxByName(_ context.Context, name string) (core.CashBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.boxes {
		if b.Name == name {
			return b, nil
		}
	}
	return core.CashBox{}, fmt.Errorf("get cash box %q: %w", name, core.ErrNotFound)
}

func (s *Store) ListCashBoxes(_ context.Context, search string) ([]core.CashBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CashBox
	for _, b := range s.boxes {
		if containsFold(b.Name, search) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasBox(t.CashBoxID) || !s.hasUser(t.UserID) {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", core.ErrNotFound)
	}
	if t.Kind != core.KindInvoice {
		t.Description, t.File = "", ""
	}
	t.ID = int64(len(s.txs) + 1)
	s.txs = append(s.txs, t)
	return t, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, core.ErrNotFound)
}

func (s *Store) ListTransactions(_ context.Context, f ports.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if matches(t, f) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListUnexported(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if t.Kind == core.KindInvoice && t.ExportedAt.IsZero() {
			out = append(out, t)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) MarkExported(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.txs {
		if s.txs[i].ID == id && s.txs[i].Kind == core.KindInvoice {
			s.txs[i].ExportedAt = at.UTC()
			return nil
		}
	}
	return fmt.Errorf("mark invoice %d exported: %w", id, core.ErrNotFound)
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return core.User{}, fmt.Errorf("create user %q: %w", u.Username, core.ErrConflict)
		}
	}
	u.ID = int64(len(s.users) + 1)
	s.users = append(s.users, u)
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("get user %d: %w", id, core.ErrNotFound)
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("get user %q: %w", username, core.ErrNotFound)
}

func (s *Store) ListUsers(context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.User(nil), s.users...)
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) hasBox(id int64) bool {
	for _, b := range s.boxes {
		if b.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) hasUser(id int64) bool {
	for _, u := range s.users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func matches(t core.Transaction, f ports.TransactionFilter) bool {
	if f.CashBoxID != 0 && t.CashBoxID != f.CashBoxID {
		return false
	}
	if f.UserID != 0 && t.UserID != f.UserID {
		return false
	}
	if !t.Date.OnOrBefore(f.Until) {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if strings.TrimSpace(f.Search) != "" {
		return t.Kind == core.KindInvoice && containsFold(t.Description, f.Search)
	}
	return true
}

func containsFold(s, sub string) bool {
	sub = strings.TrimSpace(sub)
	return sub == "" || strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
